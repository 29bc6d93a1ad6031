// Package monitoring turns a verification run into a web server so that the
// run can be watched and paused while it executes.
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
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/pprof/profile"
	"github.com/gorilla/mux"
	"github.com/pkg/browser"
	"github.com/rs/xid"
	"github.com/sarchlab/kvsverify/monitoring/web"
	"github.com/shirou/gopsutil/process"
	"github.com/syifan/goseth"
)

// Controller is the run being monitored.
type Controller interface {
	Pause()
	Continue()
	IsPaused() bool
	Now() uint64

	// InspectPaused runs f while no cycle is in progress.
	InspectPaused(f func())
}

// A Component is anything with a name whose state can be inspected.
type Component interface {
	Name() string
}

// A Buffer is a bounded queue whose fill level can be watched.
type Buffer interface {
	Name() string
	Size() int
	Capacity() int
}

// Monitor can turn a run into a server and allows external monitoring and
// controlling of the run.
type Monitor struct {
	controller  Controller
	components  []Component
	buffers     []Buffer
	stats       func() any
	portNumber  int
	openBrowser bool

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

// WithBrowser makes StartServer open the monitor page in a browser.
func (m *Monitor) WithBrowser(open bool) *Monitor {
	m.openBrowser = open
	return m
}

// RegisterController registers the run to control.
func (m *Monitor) RegisterController(c Controller) {
	m.controller = c
}

// RegisterComponent registers a component to be inspected.
func (m *Monitor) RegisterComponent(c Component) {
	m.components = append(m.components, c)
}

// RegisterBuffer registers a buffer to be watched.
func (m *Monitor) RegisterBuffer(b Buffer) {
	m.buffers = append(m.buffers, b)
}

// RegisterStats sets the function that produces the run counters.
func (m *Monitor) RegisterStats(f func() any) {
	m.stats = f
}

// CreateProgressBar creates a new progress bar.
func (m *Monitor) CreateProgressBar(name string, total uint64) *ProgressBar {
	bar := &ProgressBar{
		id:    xid.New().String(),
		name:  name,
		start: time.Now(),
		total: total,
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

// Router returns the handler of all the monitor endpoints.
func (m *Monitor) Router() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/api/pause", m.pause)
	r.HandleFunc("/api/continue", m.continueRun)
	r.HandleFunc("/api/now", m.now)
	r.HandleFunc("/api/list_components", m.listComponents)
	r.HandleFunc("/api/component/{name}", m.listComponentDetails)
	r.HandleFunc("/api/field/{json}", m.listFieldValue)
	r.HandleFunc("/api/hangdetector/buffers", m.hangDetectorBuffers)
	r.HandleFunc("/api/progress", m.listProgressBars)
	r.HandleFunc("/api/stats", m.listStats)
	r.HandleFunc("/api/resource", m.listResources)
	r.HandleFunc("/api/profile", m.collectProfile)
	r.PathPrefix("/").Handler(http.FileServer(web.GetAssets()))

	return r
}

// StartServer starts the monitor as a web server and returns its address.
func (m *Monitor) StartServer() (string, error) {
	listener, err := net.Listen("tcp", ":"+strconv.Itoa(m.portNumber))
	if err != nil {
		return "", fmt.Errorf("starting monitor: %w", err)
	}

	url := fmt.Sprintf("http://localhost:%d",
		listener.Addr().(*net.TCPAddr).Port)

	fmt.Fprintf(os.Stderr, "Monitoring verification with %s\n", url)

	router := m.Router()
	go func() {
		err := http.Serve(listener, router)
		dieOnErr(err)
	}()

	if m.openBrowser {
		err = browser.OpenURL(url)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Cannot open browser: %v\n", err)
		}
	}

	return url, nil
}

func (m *Monitor) pause(w http.ResponseWriter, _ *http.Request) {
	m.controller.Pause()
	_, err := w.Write(nil)
	dieOnErr(err)
}

func (m *Monitor) continueRun(w http.ResponseWriter, _ *http.Request) {
	m.controller.Continue()
	_, err := w.Write(nil)
	dieOnErr(err)
}

func (m *Monitor) now(w http.ResponseWriter, _ *http.Request) {
	fmt.Fprintf(w, "{\"now\":%d,\"paused\":%t}",
		m.controller.Now(), m.controller.IsPaused())
}

func (m *Monitor) listComponents(w http.ResponseWriter, _ *http.Request) {
	names := make([]string, 0, len(m.components))
	for _, c := range m.components {
		names = append(names, c.Name())
	}

	writeJSON(w, names)
}

func (m *Monitor) listComponentDetails(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	component := m.findComponentOr404(w, name)
	if component == nil {
		return
	}

	serializer := goseth.NewSerializer()
	serializer.SetRoot(component)
	serializer.SetMaxDepth(1)

	m.controller.InspectPaused(func() {
		err := serializer.Serialize(w)
		dieOnErr(err)
	})
}

type fieldReq struct {
	CompName  string `json:"comp_name,omitempty"`
	FieldName string `json:"field_name,omitempty"`
}

func (m *Monitor) listFieldValue(w http.ResponseWriter, r *http.Request) {
	jsonString := mux.Vars(r)["json"]
	req := fieldReq{}

	err := json.Unmarshal([]byte(jsonString), &req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	component := m.findComponentOr404(w, req.CompName)
	if component == nil {
		return
	}

	serializer := goseth.NewSerializer()
	serializer.SetRoot(component)
	serializer.SetMaxDepth(1)

	err = serializer.SetEntryPoint(strings.Split(req.FieldName, "."))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	m.controller.InspectPaused(func() {
		err = serializer.Serialize(w)
		dieOnErr(err)
	})
}

func (m *Monitor) hangDetectorBuffers(w http.ResponseWriter, r *http.Request) {
	sortMethod, limit, offset, err := m.buffersParseParams(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	type bufferRsp struct {
		Buffer string `json:"buffer"`
		Level  int    `json:"level"`
		Cap    int    `json:"cap"`
	}

	rsp := []bufferRsp{}

	m.controller.InspectPaused(func() {
		for _, b := range m.sortAndSelectBuffers(sortMethod, limit, offset) {
			rsp = append(rsp, bufferRsp{b.Name(), b.Size(), b.Capacity()})
		}
	})

	writeJSON(w, rsp)
}

func (*Monitor) buffersParseParams(
	r *http.Request,
) (sortMethod string, limit, offset int, err error) {
	sortMethod = r.URL.Query().Get("sort")
	if sortMethod == "" {
		sortMethod = "percent"
	}

	if sortMethod != "level" && sortMethod != "percent" {
		return "", 0, 0, fmt.Errorf(
			"invalid sort method: %s. Allowed values are `level` and `percent`",
			sortMethod)
	}

	limit, err = queryInt(r, "limit")
	if err != nil {
		return sortMethod, 0, 0, err
	}

	offset, err = queryInt(r, "offset")
	if err != nil {
		return sortMethod, limit, 0, err
	}

	if limit < 0 || offset < 0 {
		return sortMethod, limit, offset,
			errors.New("limit and offset must not be negative")
	}

	return sortMethod, limit, offset, nil
}

func queryInt(r *http.Request, name string) (int, error) {
	s := r.URL.Query().Get(name)
	if s == "" {
		return 0, nil
	}

	return strconv.Atoi(s)
}

func bufferPercent(b Buffer) float64 {
	return float64(b.Size()) / float64(b.Capacity())
}

// sortAndSelectBuffers orders the buffers by fill level. A zero limit selects
// all the buffers after offset.
func (m *Monitor) sortAndSelectBuffers(
	sortMethod string,
	limit, offset int,
) []Buffer {
	sorted := make([]Buffer, len(m.buffers))
	copy(sorted, m.buffers)

	byLevel := func(i, j int) (less, decided bool) {
		si, sj := sorted[i].Size(), sorted[j].Size()
		if si != sj {
			return si > sj, true
		}

		return false, false
	}

	byPercent := func(i, j int) (less, decided bool) {
		pi, pj := bufferPercent(sorted[i]), bufferPercent(sorted[j])
		if pi != pj {
			return pi > pj, true
		}

		return false, false
	}

	first, second := byPercent, byLevel
	if sortMethod == "level" {
		first, second = byLevel, byPercent
	}

	sort.SliceStable(sorted, func(i, j int) bool {
		if less, ok := first(i, j); ok {
			return less
		}

		less, _ := second(i, j)

		return less
	})

	if offset > len(sorted) {
		offset = len(sorted)
	}

	end := len(sorted)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}

	return sorted[offset:end]
}

func (m *Monitor) findComponentOr404(
	w http.ResponseWriter,
	name string,
) Component {
	for _, c := range m.components {
		if c.Name() == name {
			return c
		}
	}

	writeError(w, http.StatusNotFound,
		fmt.Errorf("component %q not found", name))

	return nil
}

func (m *Monitor) listProgressBars(w http.ResponseWriter, _ *http.Request) {
	now := time.Now()

	m.progressBarsLock.Lock()
	bars := make([]progressRsp, 0, len(m.progressBars))
	for _, b := range m.progressBars {
		bars = append(bars, b.snapshot(now))
	}
	m.progressBarsLock.Unlock()

	writeJSON(w, bars)
}

func (m *Monitor) listStats(w http.ResponseWriter, _ *http.Request) {
	stats := any(struct{}{})
	if m.stats != nil {
		m.controller.InspectPaused(func() {
			stats = m.stats()
		})
	}

	writeJSON(w, stats)
}

type resourceRsp struct {
	CPUPercent float64 `json:"cpu_percent"`
	MemorySize uint64  `json:"memory_size"`
}

func (m *Monitor) listResources(w http.ResponseWriter, _ *http.Request) {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	var rsp resourceRsp

	if rsp.CPUPercent, err = proc.CPUPercent(); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	mem, err := proc.MemoryInfo()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	rsp.MemorySize = mem.RSS

	writeJSON(w, rsp)
}

func (m *Monitor) collectProfile(w http.ResponseWriter, _ *http.Request) {
	buf := bytes.NewBuffer(nil)

	err := pprof.StartCPUProfile(buf)
	if err != nil {
		writeError(w, http.StatusConflict, err)
		return
	}

	time.Sleep(time.Second)

	pprof.StopCPUProfile()

	prof, err := profile.ParseData(buf.Bytes())
	dieOnErr(err)

	writeJSON(w, prof)
}

func writeJSON(w http.ResponseWriter, v any) {
	data, err := json.Marshal(v)
	dieOnErr(err)

	w.Header().Set("Content-Type", "application/json")
	_, err = w.Write(data)
	dieOnErr(err)
}

func writeError(w http.ResponseWriter, status int, err error) {
	w.WriteHeader(status)
	fmt.Fprintf(w, "Error: %s", err)
}

func dieOnErr(err error) {
	if err != nil {
		log.Panic(err)
	}
}
