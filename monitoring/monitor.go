// Package monitoring turns a running simulation into a small web server so
// that its progress can be watched from a browser. The monitor only reads the
// simulation and never changes it.
package monitoring

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"runtime/pprof"
	"strconv"
	"sync"
	"time"

	"github.com/google/pprof/profile"
	"github.com/gorilla/mux"
	"github.com/pkg/browser"
	"github.com/rs/xid"
	"github.com/sequence-sim/sequence/monitoring/web"
	"github.com/sequence-sim/sequence/sim"
	"github.com/shirou/gopsutil/process"
	"github.com/syifan/goseth"
)

// Monitor can turn a simulation into a server and allows external monitoring
// of the simulation.
type Monitor struct {
	timeline    *sim.Timeline
	entities    []sim.Named
	portNumber  int
	openBrowser bool

	server   *http.Server
	listener net.Listener

	progressBarsLock sync.Mutex
	progressBars     []*ProgressBar
}

// NewMonitor creates a new Monitor
func NewMonitor() *Monitor {
	return &Monitor{}
}

// WithPortNumber sets the port number of the monitor.
func (m *Monitor) WithPortNumber(portNumber int) *Monitor {
	if portNumber != 0 && portNumber < 1000 {
		fmt.Fprintf(os.Stderr,
			"Port number %d is assigned to the monitoring server, "+
				"which is not allowed. Using a random port instead.\n", portNumber)
		portNumber = 0
	}

	m.portNumber = portNumber

	return m
}

// WithOpenBrowser makes StartServer open the dashboard in a browser.
func (m *Monitor) WithOpenBrowser(open bool) *Monitor {
	m.openBrowser = open
	return m
}

// RegisterTimeline registers the timeline that is used in the simulation.
func (m *Monitor) RegisterTimeline(t *sim.Timeline) {
	m.timeline = t
}

// RegisterEntity registers an entity to be listed by the monitor. Entities
// must be registered before the server starts.
func (m *Monitor) RegisterEntity(e sim.Named) {
	m.entities = append(m.entities, e)
}

// CreateProgressBar creates a new progress bar.
func (m *Monitor) CreateProgressBar(name string, total uint64) *ProgressBar {
	bar := &ProgressBar{
		ID:        xid.New().String(),
		Name:      name,
		StartTime: time.Now(),
		Total:     total,
	}

	m.progressBarsLock.Lock()
	defer m.progressBarsLock.Unlock()

	m.progressBars = append(m.progressBars, bar)

	return bar
}

// CompleteProgressBar removes a bar to be shown on the webpage.
func (m *Monitor) CompleteProgressBar(pb *ProgressBar) {
	m.progressBarsLock.Lock()
	defer m.progressBarsLock.Unlock()

	newBars := make([]*ProgressBar, 0, len(m.progressBars))
	for _, b := range m.progressBars {
		if b != pb {
			newBars = append(newBars, b)
		}
	}

	m.progressBars = newBars
}

func (m *Monitor) router() *mux.Router {
	r := mux.NewRouter()

	fServer := http.FileServer(web.GetAssets())
	r.HandleFunc("/api/now", m.now)
	r.HandleFunc("/api/status", m.status)
	r.HandleFunc("/api/timeline", m.serializeTimeline)
	r.HandleFunc("/api/list_entities", m.listEntities)
	r.HandleFunc("/api/progress", m.listProgressBars)
	r.HandleFunc("/api/resource", m.listResources)
	r.HandleFunc("/api/profile", m.collectProfile)
	r.PathPrefix("/").Handler(fServer)

	return r
}

// StartServer starts the monitor as a web server with a custom port if wanted.
func (m *Monitor) StartServer() {
	actualPort := ":0"
	if m.portNumber > 1000 {
		actualPort = ":" + strconv.Itoa(m.portNumber)
	}

	listener, err := net.Listen("tcp", actualPort)
	dieOnErr(err)

	m.listener = listener
	m.server = &http.Server{
		Handler:           m.router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	url := m.URL()
	fmt.Fprintf(os.Stderr, "Monitoring simulation with %s\n", url)

	go func() {
		err := m.server.Serve(listener)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			dieOnErr(err)
		}
	}()

	if m.openBrowser {
		if err := browser.OpenURL(url); err != nil {
			log.Printf("cannot open browser: %v", err)
		}
	}
}

// URL returns the address of the dashboard. It is empty before the server
// starts.
func (m *Monitor) URL() string {
	if m.listener == nil {
		return ""
	}

	return fmt.Sprintf("http://localhost:%d",
		m.listener.Addr().(*net.TCPAddr).Port)
}

// StopServer shuts down the web server.
func (m *Monitor) StopServer() {
	if m.server == nil {
		return
	}

	err := m.server.Close()
	dieOnErr(err)

	m.server = nil
	m.listener = nil
}

func (m *Monitor) now(w http.ResponseWriter, _ *http.Request) {
	if m.timelineOr404(w) == nil {
		return
	}

	fmt.Fprintf(w, "{\"now\":%d}", m.timeline.Now())
}

type statusRsp struct {
	ID         string `json:"id"`
	State      string `json:"state"`
	Running    bool   `json:"running"`
	Now        uint64 `json:"now"`
	NowHuman   string `json:"now_human"`
	StopTime   uint64 `json:"stop_time"`
	Unbounded  bool   `json:"unbounded"`
	Scheduled  uint64 `json:"scheduled"`
	Dispatched uint64 `json:"dispatched"`
	Pending    int    `json:"pending"`
}

func (m *Monitor) snapshot() statusRsp {
	t := m.timeline

	return statusRsp{
		ID:         t.ID(),
		State:      t.State().String(),
		Running:    t.IsRunning(),
		Now:        uint64(t.Now()),
		NowHuman:   sim.HumanTime(float64(t.Now()) / 1e3),
		StopTime:   uint64(t.StopTime()),
		Unbounded:  t.StopTime() == sim.Forever,
		Scheduled:  t.NumScheduled(),
		Dispatched: t.NumDispatched(),
		Pending:    t.NumPending(),
	}
}

func (m *Monitor) status(w http.ResponseWriter, _ *http.Request) {
	if m.timelineOr404(w) == nil {
		return
	}

	bytes, err := json.Marshal(m.snapshot())
	dieOnErr(err)

	_, err = w.Write(bytes)
	dieOnErr(err)
}

func (m *Monitor) serializeTimeline(w http.ResponseWriter, _ *http.Request) {
	if m.timelineOr404(w) == nil {
		return
	}

	status := m.snapshot()

	serializer := goseth.NewSerializer()
	serializer.SetRoot(&status)
	serializer.SetMaxDepth(1)
	err := serializer.Serialize(w)

	dieOnErr(err)
}

func (m *Monitor) timelineOr404(w http.ResponseWriter) *sim.Timeline {
	if m.timeline == nil {
		w.WriteHeader(http.StatusNotFound)
		_, err := w.Write([]byte("Timeline not registered"))
		dieOnErr(err)
	}

	return m.timeline
}

func (m *Monitor) listEntities(w http.ResponseWriter, _ *http.Request) {
	names := make([]string, 0, len(m.entities))
	for _, e := range m.entities {
		names = append(names, e.Name())
	}

	bytes, err := json.Marshal(names)
	dieOnErr(err)

	_, err = w.Write(bytes)
	dieOnErr(err)
}

func (m *Monitor) listProgressBars(w http.ResponseWriter, _ *http.Request) {
	m.progressBarsLock.Lock()
	bars := make([]progressBarRsp, 0, len(m.progressBars))
	for _, b := range m.progressBars {
		bars = append(bars, b.snapshot())
	}
	m.progressBarsLock.Unlock()

	bytes, err := json.Marshal(bars)
	dieOnErr(err)

	_, err = w.Write(bytes)
	dieOnErr(err)
}

type resourceRsp struct {
	CPUPercent float64 `json:"cpu_percent"`
	MemorySize uint64  `json:"memory_size"`
}

func (m *Monitor) listResources(w http.ResponseWriter, _ *http.Request) {
	pid := os.Getpid()
	process, err := process.NewProcess(int32(pid))
	dieOnErr(err)

	cpuPercent, err := process.CPUPercent()
	dieOnErr(err)

	memorySize, err := process.MemoryInfo()
	dieOnErr(err)

	rsp := resourceRsp{
		CPUPercent: cpuPercent,
		MemorySize: memorySize.RSS,
	}

	bytes, err := json.Marshal(rsp)
	dieOnErr(err)

	_, err = w.Write(bytes)
	dieOnErr(err)
}

func (m *Monitor) collectProfile(w http.ResponseWriter, _ *http.Request) {
	buf := bytes.NewBuffer(nil)

	err := pprof.StartCPUProfile(buf)
	dieOnErr(err)

	time.Sleep(time.Second)

	pprof.StopCPUProfile()

	prof, err := profile.ParseData(buf.Bytes())
	dieOnErr(err)

	bytes, err := json.Marshal(prof)
	dieOnErr(err)

	_, err = w.Write(bytes)
	dieOnErr(err)
}

func dieOnErr(err error) {
	if err != nil {
		log.Panic(err)
	}
}
