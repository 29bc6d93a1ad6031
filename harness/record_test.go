package harness

import (
	"bytes"
	"context"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/kvsverify/datarecording"
	"github.com/sarchlab/kvsverify/device/hashmap"
)

var _ = Describe("Recorder", func() {
	It("should record the summary and the violation of a failed run", func() {
		path := filepath.Join(GinkgoT().TempDir(), "run")
		backend, err := datarecording.New(path)
		Expect(err).NotTo(HaveOccurred())

		rec := NewRecorder("run1", backend, true)

		cfg := smallConfig(64, 20000, 9)
		_, sc, r := newRandomRun(cfg, hashmap.FaultDropDelete)
		sc.Session().Oracle().AcceptHook(rec)

		runErr := r.Run()
		Expect(runErr).To(HaveOccurred())

		summary := NewRunSummary("", "random", sc.Session().Stats(), runErr)
		summary.Seed = cfg.Seed
		summary.Fault = hashmap.FaultDropDelete.String()
		rec.Finish(summary)
		Expect(backend.Close()).To(Succeed())

		reader, err := datarecording.NewReader(path + ".sqlite3")
		Expect(err).NotTo(HaveOccurred())
		defer reader.Close()

		reader.MapTable(SummaryTableName, RunSummary{})
		reader.MapTable(ViolationTableName, ViolationEntry{})
		reader.MapTable(LookupTableName, LookupEntry{})

		ctx := context.Background()

		rows, total, err := reader.Query(ctx, SummaryTableName,
			datarecording.QueryParams{})
		Expect(err).NotTo(HaveOccurred())
		Expect(total).To(Equal(1))
		got := rows[0].(*RunSummary)
		Expect(got.RunID).To(Equal("run1"))
		Expect(got.Passed).To(BeFalse())
		Expect(got.Fault).To(Equal("drop-delete"))
		Expect(got.Error).To(Equal(runErr.Error()))

		rows, total, err = reader.Query(ctx, ViolationTableName,
			datarecording.QueryParams{})
		Expect(err).NotTo(HaveOccurred())
		Expect(total).To(Equal(1))
		Expect(rows[0].(*ViolationEntry).Cycle).To(Equal(int64(got.Cycles)))

		_, total, err = reader.Query(ctx, LookupTableName,
			datarecording.QueryParams{})
		Expect(err).NotTo(HaveOccurred())
		Expect(total).To(Equal(int(got.LookupsChecked) - 1))
	})

	It("should read back runs for reporting", func() {
		path := filepath.Join(GinkgoT().TempDir(), "runs")
		backend, err := datarecording.New(path)
		Expect(err).NotTo(HaveOccurred())

		rec := NewRecorder("b", backend, false)
		v := &ViolationError{
			Record: PendingLookup{
				Kind:          OpLookupPresent,
				Key:           0x2a,
				ExpectPresent: true,
				ExpectValue:   7,
				IssueCycle:    10,
			},
			Observed:     Observation{Valid: false},
			ResolveCycle: 12,
		}
		rec.RecordViolation(v)
		rec.Finish(NewRunSummary("", "random", Stats{Cycles: 12}, v))

		backend.InsertData(SummaryTableName,
			NewRunSummary("a", "readback", Stats{Cycles: 30}, nil))
		Expect(backend.Close()).To(Succeed())

		reader, err := datarecording.NewReader(path + ".sqlite3")
		Expect(err).NotTo(HaveOccurred())
		defer reader.Close()

		records, err := ReadRunRecords(context.Background(), reader)
		Expect(err).NotTo(HaveOccurred())
		Expect(records.Summaries).To(HaveLen(2))
		Expect(records.Summaries[0].RunID).To(Equal("a"))
		Expect(records.Summaries[0].Passed).To(BeTrue())
		Expect(records.Summaries[1].Passed).To(BeFalse())
		Expect(records.Violations).To(HaveLen(1))
		Expect(records.Violations[0].Key).To(Equal(int64(0x2a)))

		buf := new(bytes.Buffer)
		Expect(records.Print(buf)).To(Succeed())
		Expect(buf.String()).To(ContainSubstring("readback"))
		Expect(buf.String()).To(ContainSubstring("0x00002a"))
		Expect(buf.String()).To(ContainSubstring("absent"))
	})
})
