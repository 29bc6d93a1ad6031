package config_test

import (
	"os"
	"path/filepath"

	"github.com/sarchlab/kvsverify/config"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Config", func() {
	It("should default to the reference testbench", func() {
		c := config.Default()

		Expect(c.Capacity).To(Equal(15000))
		Expect(c.SteadyOps).To(Equal(50000))
		Expect(c.RecencyCapacity).To(Equal(100))
		Expect(c.Latency).To(Equal(2))
		Expect(c.InsertRate).To(Equal(0.5))
		Expect(c.GuardInFlightDeletes).To(BeFalse())
		Expect(c.Validate()).To(Succeed())
	})

	It("should read variables from the environment", func() {
		GinkgoT().Setenv("KVSV_CAPACITY", "4")
		GinkgoT().Setenv("KVSV_SEED", "42")
		GinkgoT().Setenv("KVSV_INSERT_RATE", "0.25")
		GinkgoT().Setenv("KVSV_GUARD_INFLIGHT_DELETES", "true")
		GinkgoT().Setenv("KVSV_FAULT", "drop-delete")

		c := config.Default()
		Expect(config.LoadEnv(&c, filepath.Join(GinkgoT().TempDir(), "none.env"))).
			To(Succeed())

		Expect(c.Capacity).To(Equal(4))
		Expect(c.Seed).To(Equal(int64(42)))
		Expect(c.InsertRate).To(Equal(0.25))
		Expect(c.GuardInFlightDeletes).To(BeTrue())
		Expect(c.Fault).To(Equal("drop-delete"))
	})

	It("should read a dotenv file without overriding the environment", func() {
		GinkgoT().Setenv("KVSV_LATENCY", "3")

		f := filepath.Join(GinkgoT().TempDir(), "run.env")
		Expect(os.WriteFile(f,
			[]byte("KVSV_STEADY_OPS=10\nKVSV_LATENCY=5\n"), 0o644)).
			To(Succeed())
		DeferCleanup(os.Unsetenv, "KVSV_STEADY_OPS")

		c := config.Default()
		Expect(config.LoadEnv(&c, f)).To(Succeed())

		Expect(c.SteadyOps).To(Equal(10))
		Expect(c.Latency).To(Equal(3))
	})

	It("should reject malformed numbers", func() {
		GinkgoT().Setenv("KVSV_CAPACITY", "lots")

		c := config.Default()
		err := config.LoadEnv(&c, filepath.Join(GinkgoT().TempDir(), "none.env"))

		Expect(err).To(MatchError(ContainSubstring("KVSV_CAPACITY")))
	})

	DescribeTable("validation",
		func(mutate func(c *config.Config), msg string) {
			c := config.Default()
			mutate(&c)
			Expect(c.Validate()).To(MatchError(ContainSubstring(msg)))
		},
		Entry("capacity", func(c *config.Config) { c.Capacity = 0 }, "capacity"),
		Entry("latency", func(c *config.Config) { c.Latency = 1 }, "latency"),
		Entry("insert rate", func(c *config.Config) { c.InsertRate = 2 }, "insert rate"),
		Entry("slots", func(c *config.Config) { c.NumSlots = 12 }, "power of two"),
		Entry("small table", func(c *config.Config) { c.NumSlots = 1024 }, "cannot hold"),
		Entry("table without room for in-flight deletes", func(c *config.Config) {
			c.Capacity = 14
			c.NumSlots = 16
		}, "cannot hold"),
		Entry("trace format", func(c *config.Config) { c.TraceFormat = "fst" }, "trace format"),
		Entry("recency", func(c *config.Config) { c.RecencyCapacity = 0 }, "recency"),
	)

	It("should accept a table with room for in-flight deletes", func() {
		c := config.Default()
		c.Capacity = 13
		c.NumSlots = 16

		Expect(c.Validate()).To(Succeed())
	})

	It("should flatten into properties", func() {
		props := config.Default().Properties()

		Expect(props).To(HaveKeyWithValue("capacity", "15000"))
		Expect(props).To(HaveKeyWithValue("trace_format", "vcd"))
	})
})
