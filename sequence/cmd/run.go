package cmd

import (
	"fmt"
	"io"
	"log"
	"os"

	"github.com/sequence-sim/sequence/datarecording"
	"github.com/sequence-sim/sequence/examples/ping"
	"github.com/sequence-sim/sequence/monitoring"
	"github.com/sequence-sim/sequence/sim"
	"github.com/sequence-sim/sequence/tracing"
	"github.com/spf13/cobra"
)

type runOptions struct {
	stopTime    uint64
	seed        int64
	numPings    int
	interval    uint64
	latency     uint64
	jitter      uint64
	progress    bool
	monitor     bool
	monitorPort int
	openBrowser bool
	traceDB     string
	logEvents   bool
	parallelIDs bool
}

func newRunCmd() *cobra.Command {
	opts := &runOptions{}

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run the ping simulation.",
		Long: "`run` builds two nodes that ping each other, runs the " +
			"simulation, and prints the final time and event counters.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSimulation(opts, cmd.OutOrStdout())
		},
	}

	flags := runCmd.Flags()
	flags.Uint64Var(&opts.stopTime, "stop-time", 0,
		"Simulated time in ps to stop at. 0 runs until no event is left.")
	flags.Int64Var(&opts.seed, "seed", 0, "Seed of the random source.")
	flags.IntVar(&opts.numPings, "pings", 10, "Number of pings each node sends.")
	flags.Uint64Var(&opts.interval, "interval", 1000,
		"Time in ps between two pings of the same node.")
	flags.Uint64Var(&opts.latency, "latency", 500,
		"Minimum one-way link delay in ps.")
	flags.Uint64Var(&opts.jitter, "jitter", 0,
		"Maximum random delay in ps added to each message.")
	flags.BoolVar(&opts.progress, "progress", false,
		"Print the simulation progress to stderr.")
	flags.BoolVar(&opts.monitor, "monitor", false,
		"Serve the monitoring dashboard while the simulation runs.")
	flags.IntVar(&opts.monitorPort, "monitor-port", 0,
		"Port of the monitoring server. 0 picks a random port.")
	flags.BoolVar(&opts.openBrowser, "open-browser", false,
		"Open the monitoring dashboard in a browser.")
	flags.StringVar(&opts.traceDB, "trace-db", "",
		"Record every dispatched event into <trace-db>.sqlite3.")
	flags.BoolVar(&opts.logEvents, "log-events", false,
		"Log every event before it is dispatched.")
	flags.BoolVar(&opts.parallelIDs, "parallel-ids", false,
		"Use globally unique event IDs instead of a counter.")

	return runCmd
}

func runSimulation(opts *runOptions, out io.Writer) error {
	if err := validate(opts); err != nil {
		return err
	}

	if opts.parallelIDs {
		sim.UseParallelIDGenerator()
	}

	tl := buildTimeline(opts)

	counter := tracing.NewOwnerCountTracer()
	tracing.CollectTrace(tl, counter)

	if opts.traceDB != "" {
		recorder := datarecording.New(opts.traceDB)
		defer recorder.Close()

		tracing.CollectTrace(tl, tracing.NewDispatchTracer(recorder))
	}

	builder := ping.MakeBuilder().
		WithTimeline(tl).
		WithNumPings(opts.numPings).
		WithInterval(sim.VTimeInPs(opts.interval)).
		WithLatency(sim.VTimeInPs(opts.latency)).
		WithJitter(sim.VTimeInPs(opts.jitter))

	var monitor *monitoring.Monitor
	if opts.monitor {
		monitor = monitoring.NewMonitor().
			WithPortNumber(opts.monitorPort).
			WithOpenBrowser(opts.openBrowser)
		monitor.RegisterTimeline(tl)

		bar := monitor.CreateProgressBar("round trips", uint64(2*opts.numPings))
		defer monitor.CompleteProgressBar(bar)

		builder = builder.WithProgressTracker(bar)
	}

	nodeA := builder.Build("NodeA")
	nodeB := builder.Build("NodeB")
	nodeA.Connect(nodeB)
	nodeB.Connect(nodeA)

	if monitor != nil {
		monitor.RegisterEntity(nodeA)
		monitor.RegisterEntity(nodeB)
		monitor.StartServer()
		defer monitor.StopServer()
	}

	if err := tl.Init(); err != nil {
		return err
	}

	if err := tl.Run(); err != nil {
		return err
	}

	printSummary(out, tl, counter, nodeA, nodeB)

	return nil
}

func validate(opts *runOptions) error {
	if opts.numPings < 0 {
		return fmt.Errorf("invalid number of pings %d", opts.numPings)
	}

	if opts.jitter > uint64(ping.MaxJitter) {
		return fmt.Errorf("jitter %d ps exceeds the maximum of %d ps",
			opts.jitter, ping.MaxJitter)
	}

	return nil
}

func buildTimeline(opts *runOptions) *sim.Timeline {
	stopTime := sim.VTimeInPs(opts.stopTime)
	if stopTime == 0 {
		stopTime = sim.Forever
	}

	builder := sim.MakeTimelineBuilder().
		WithStopTime(stopTime).
		WithSeed(opts.seed)
	if opts.progress {
		builder = builder.WithProgress()
	}

	tl := builder.Build()

	if opts.logEvents {
		tl.AcceptHook(sim.NewEventLogger(log.New(os.Stderr, "", 0)))
	}

	return tl
}

func printSummary(
	out io.Writer,
	tl *sim.Timeline,
	counter *tracing.OwnerCountTracer,
	nodes ...*ping.Node,
) {
	fmt.Fprintf(out, "finished at %d ps (%s), state %s\n",
		tl.Now(), sim.HumanTime(float64(tl.Now())/1e3), tl.State())
	fmt.Fprintf(out, "scheduled: %d, dispatched: %d, pending: %d\n",
		tl.NumScheduled(), tl.NumDispatched(), tl.NumPending())

	for _, owner := range counter.Owners() {
		fmt.Fprintf(out, "  %s: %d events\n", owner, counter.Count(owner))
	}

	for _, n := range nodes {
		rtts := n.RoundTrips()
		if len(rtts) == 0 {
			fmt.Fprintf(out, "%s: no round trip completed\n", n.Name())
			continue
		}

		var total sim.VTimeInPs
		for _, rtt := range rtts {
			total += rtt
		}

		fmt.Fprintf(out, "%s: %d round trips, average %d ps\n",
			n.Name(), len(rtts), uint64(total)/uint64(len(rtts)))
	}
}
