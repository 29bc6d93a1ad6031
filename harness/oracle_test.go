package harness

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/mock/gomock"

	"github.com/sarchlab/kvsverify/hooking"
)

var _ = Describe("Oracle", func() {
	var (
		mockCtrl *gomock.Controller
		dev      *MockDevice
		stats    Stats
		o        *Oracle
	)

	present := func(key, value uint32) PendingLookup {
		return PendingLookup{
			Kind:          OpLookupPresent,
			Key:           key,
			ExpectPresent: true,
			ExpectValue:   value,
		}
	}

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		dev = NewMockDevice(mockCtrl)
		stats = Stats{}
		o = NewOracle(2, &stats)
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	It("should not resolve before the latency has passed", func() {
		o.Issue(present(1, 10))

		Expect(o.ResolveDue(dev, 1)).To(Succeed())
		Expect(o.Outstanding()).To(Equal(1))
		Expect(stats.LookupsChecked).To(BeZero())
	})

	It("should resolve the oldest record once latency records wait", func() {
		o.Issue(present(1, 10))
		o.Issue(present(2, 20))

		dev.EXPECT().Valid().Return(true)
		dev.EXPECT().Value().Return(uint32(10))

		Expect(o.ResolveDue(dev, 2)).To(Succeed())
		Expect(o.Outstanding()).To(Equal(1))
		Expect(o.Queue().At(0).Key).To(Equal(uint32(2)))
		Expect(stats.LookupsChecked).To(Equal(uint64(1)))
		Expect(stats.LookupsMatched).To(Equal(uint64(1)))
	})

	It("should panic when a record is issued over a due one", func() {
		o.Issue(present(1, 10))
		o.Issue(present(2, 20))

		Expect(func() { o.Issue(present(3, 30)) }).To(Panic())
	})

	It("should accept absent lookups that miss", func() {
		o.Issue(PendingLookup{Kind: OpLookupRandom, Key: 5})
		o.Issue(present(2, 20))

		dev.EXPECT().Valid().Return(false)
		dev.EXPECT().Value().Return(uint32(0))

		Expect(o.ResolveDue(dev, 2)).To(Succeed())
		Expect(stats.LookupsAbsent).To(Equal(uint64(1)))
	})

	It("should report a presence mismatch", func() {
		o.Issue(present(1, 10))
		o.Issue(present(2, 20))

		dev.EXPECT().Valid().Return(false)
		dev.EXPECT().Value().Return(uint32(0))

		err := o.ResolveDue(dev, 7)

		var v *ViolationError
		Expect(err).To(BeAssignableToTypeOf(v))
		v = err.(*ViolationError)
		Expect(v.Record.Key).To(Equal(uint32(1)))
		Expect(v.ResolveCycle).To(Equal(uint64(7)))
		Expect(v.Error()).To(ContainSubstring("expected valid=true"))
	})

	It("should report a value mismatch", func() {
		o.Issue(present(1, 10))
		o.Issue(present(2, 20))

		dev.EXPECT().Valid().Return(true)
		dev.EXPECT().Value().Return(uint32(11))

		err := o.ResolveDue(dev, 2)

		Expect(err).To(MatchError(ContainSubstring("returned value 11, expected 10")))
		Expect(stats.LookupsMatched).To(BeZero())
	})

	It("should report a hit on an absent key", func() {
		o.Issue(PendingLookup{Kind: OpLookupRecent, Key: 3})
		o.Issue(present(2, 20))

		dev.EXPECT().Valid().Return(true)
		dev.EXPECT().Value().Return(uint32(30))

		Expect(o.ResolveDue(dev, 2)).To(MatchError(ContainSubstring("lookup-recent")))
	})

	It("should pass idle records without reading the device", func() {
		o.Issue(PendingLookup{Kind: OpIdle})
		o.Issue(PendingLookup{Kind: OpIdle})

		Expect(o.ResolveDue(dev, 2)).To(Succeed())
		Expect(stats.LookupsChecked).To(BeZero())
	})

	It("should drive a deferred replace", func() {
		r := present(1, 10)
		r.Mutation = MutationReplace
		r.ModValue = 99
		o.Issue(r)
		o.Issue(PendingLookup{Kind: OpIdle})

		dev.EXPECT().Valid().Return(true)
		dev.EXPECT().Value().Return(uint32(10))
		dev.EXPECT().SetModify(true)
		dev.EXPECT().SetModValue(uint32(99))

		Expect(o.ResolveDue(dev, 2)).To(Succeed())
		Expect(stats.Modifications).To(Equal(uint64(1)))
		Expect(stats.Deletes).To(BeZero())
	})

	It("should drive a deferred delete", func() {
		r := present(1, 10)
		r.Mutation = MutationDelete
		o.Issue(r)
		o.Issue(PendingLookup{Kind: OpIdle})

		Expect(o.HasPendingDelete(1)).To(BeTrue())
		Expect(o.HasPendingDelete(2)).To(BeFalse())

		dev.EXPECT().Valid().Return(true)
		dev.EXPECT().Value().Return(uint32(10))
		dev.EXPECT().SetModify(true)
		dev.EXPECT().SetDel(true)

		Expect(o.ResolveDue(dev, 2)).To(Succeed())
		Expect(stats.Modifications).To(Equal(uint64(1)))
		Expect(stats.Deletes).To(Equal(uint64(1)))
		Expect(o.HasPendingDelete(1)).To(BeFalse())
	})

	It("should not drive the mutation of a failed record", func() {
		r := present(1, 10)
		r.Mutation = MutationDelete
		o.Issue(r)
		o.Issue(PendingLookup{Kind: OpIdle})

		dev.EXPECT().Valid().Return(false)
		dev.EXPECT().Value().Return(uint32(0))

		Expect(o.ResolveDue(dev, 2)).NotTo(Succeed())
	})

	It("should invoke hooks", func() {
		var positions []*hooking.HookPos
		o.AcceptHook(hooking.HookFunc(func(ctx hooking.HookCtx) {
			positions = append(positions, ctx.Pos)
		}))

		o.Issue(present(1, 10))
		o.Issue(present(2, 20))
		dev.EXPECT().Valid().Return(true).Times(2)
		dev.EXPECT().Value().Return(uint32(10))
		dev.EXPECT().Value().Return(uint32(0))

		Expect(o.ResolveDue(dev, 2)).To(Succeed())
		o.Issue(PendingLookup{Kind: OpIdle})
		Expect(o.ResolveDue(dev, 3)).NotTo(Succeed())

		Expect(positions).To(Equal([]*hooking.HookPos{
			HookPosLookupIssued,
			HookPosLookupIssued,
			HookPosLookupResolved,
			HookPosLookupIssued,
			HookPosViolation,
		}))
	})
})
