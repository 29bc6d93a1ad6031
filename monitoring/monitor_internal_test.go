package monitoring

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

type fakeController struct {
	paused    bool
	now       uint64
	inspected int
}

func (c *fakeController) Pause()         { c.paused = true }
func (c *fakeController) Continue()      { c.paused = false }
func (c *fakeController) IsPaused() bool { return c.paused }
func (c *fakeController) Now() uint64    { return c.now }

func (c *fakeController) InspectPaused(f func()) {
	c.inspected++
	f()
}

type fakeBuffer struct {
	name       string
	size, capa int
}

func (b fakeBuffer) Name() string  { return b.name }
func (b fakeBuffer) Size() int     { return b.size }
func (b fakeBuffer) Capacity() int { return b.capa }

type sampleComponent struct {
	Count int
	Label string
}

func (c *sampleComponent) Name() string { return "Sample" }

var _ = Describe("Monitor", func() {
	var (
		m    *Monitor
		ctrl *fakeController
	)

	get := func(url string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, url, nil)
		m.Router().ServeHTTP(rec, req)

		return rec
	}

	BeforeEach(func() {
		ctrl = &fakeController{now: 42}
		m = NewMonitor()
		m.RegisterController(ctrl)
	})

	It("should fall back to a random port for privileged ports", func() {
		Expect(m.WithPortNumber(80).portNumber).To(Equal(0))
		Expect(m.WithPortNumber(8080).portNumber).To(Equal(8080))
	})

	It("should pause and continue the run", func() {
		Expect(get("/api/pause").Code).To(Equal(http.StatusOK))
		Expect(ctrl.paused).To(BeTrue())
		Expect(get("/api/now").Body.String()).
			To(Equal(`{"now":42,"paused":true}`))

		get("/api/continue")
		Expect(ctrl.paused).To(BeFalse())
	})

	It("should list components", func() {
		m.RegisterComponent(&sampleComponent{})

		Expect(get("/api/list_components").Body.String()).
			To(Equal(`["Sample"]`))
	})

	It("should return 404 for unknown components", func() {
		Expect(get("/api/component/Nope").Code).To(Equal(http.StatusNotFound))
	})

	It("should serialize a component while it is not running", func() {
		m.RegisterComponent(&sampleComponent{Count: 3, Label: "x"})

		rec := get("/api/component/Sample")

		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Body.String()).To(ContainSubstring("Count"))
		Expect(ctrl.inspected).To(Equal(1))
	})

	It("should report stats", func() {
		m.RegisterStats(func() any {
			return map[string]int{"checked": 7}
		})

		Expect(get("/api/stats").Body.String()).To(Equal(`{"checked":7}`))
	})

	It("should report empty stats when none are registered", func() {
		Expect(get("/api/stats").Body.String()).To(Equal(`{}`))
	})

	It("should list progress bars", func() {
		bar := m.CreateProgressBar("Steady", 10)
		bar.IncrementFinished(4)

		var bars []map[string]any
		Expect(json.Unmarshal(get("/api/progress").Body.Bytes(), &bars)).
			To(Succeed())
		Expect(bars).To(HaveLen(1))
		Expect(bars[0]["name"]).To(Equal("Steady"))
		Expect(bars[0]["finished"]).To(BeNumerically("==", 4))
		Expect(bars[0]["total"]).To(BeNumerically("==", 10))

		m.CompleteProgressBar(bar)
		Expect(get("/api/progress").Body.String()).To(Equal(`[]`))
	})

	Context("when sorting buffers", func() {
		BeforeEach(func() {
			m.RegisterBuffer(fakeBuffer{"A", 1, 2})
			m.RegisterBuffer(fakeBuffer{"B", 50, 100})
			m.RegisterBuffer(fakeBuffer{"C", 90, 100})
			m.RegisterBuffer(fakeBuffer{"D", 2, 2})
		})

		names := func(bs []Buffer) []string {
			var n []string
			for _, b := range bs {
				n = append(n, b.Name())
			}

			return n
		}

		It("should sort by percent", func() {
			Expect(names(m.sortAndSelectBuffers("percent", 0, 0))).
				To(Equal([]string{"D", "C", "B", "A"}))
		})

		It("should sort by level", func() {
			Expect(names(m.sortAndSelectBuffers("level", 0, 0))).
				To(Equal([]string{"C", "B", "D", "A"}))
		})

		It("should apply limit and offset", func() {
			Expect(names(m.sortAndSelectBuffers("level", 2, 1))).
				To(Equal([]string{"B", "D"}))
			Expect(names(m.sortAndSelectBuffers("level", 0, 9))).
				To(BeEmpty())
		})

		It("should reject unknown sort methods", func() {
			rec := get("/api/hangdetector/buffers?sort=size")

			Expect(rec.Code).To(Equal(http.StatusBadRequest))
		})

		It("should serve the buffer levels", func() {
			var rsp []map[string]any
			body := get("/api/hangdetector/buffers?sort=level&limit=1").Body
			Expect(json.Unmarshal(body.Bytes(), &rsp)).To(Succeed())

			Expect(rsp).To(HaveLen(1))
			Expect(rsp[0]["buffer"]).To(Equal("C"))
		})
	})

	It("should serve the web page", func() {
		rec := get("/")

		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Body.String()).To(HavePrefix("<!DOCTYPE html>"))
	})
})
