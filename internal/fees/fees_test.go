package fees_test

import (
	"testing"

	"github.com/onsi/ginkgo/v2"
	"github.com/onsi/gomega"
	"github.com/shopspring/decimal"

	"github.com/frahmantamala/payment-processing/internal/fees"
)

func TestFees(t *testing.T) {
	gomega.RegisterFailHandler(ginkgo.Fail)
	ginkgo.RunSpecs(t, "Fees Suite")
}

var _ = ginkgo.Describe("Calculate", func() {
	ginkgo.It("should charge 2.9 percent plus 30 cents", func() {
		fee := fees.Calculate(decimal.NewFromFloat(100.00))
		gomega.Expect(fee.StringFixed(2)).To(gomega.Equal("3.20"))
	})

	ginkgo.It("should charge only the fixed fee on a zero amount", func() {
		fee := fees.Calculate(decimal.Zero)
		gomega.Expect(fee.StringFixed(2)).To(gomega.Equal("0.30"))
	})

	ginkgo.It("should round half-up to two decimal places", func() {
		// 8.75 * 0.029 = 0.25375 -> 0.25 + 0.30 = 0.55
		fee := fees.Calculate(decimal.NewFromFloat(8.75))
		gomega.Expect(fee.StringFixed(2)).To(gomega.Equal("0.55"))

		// 12.50 * 0.029 = 0.3625 -> rounds up to 0.36... check half-up at 5
		// 25.00 * 0.029 = 0.725 -> 0.73 + 0.30 = 1.03
		fee = fees.Calculate(decimal.NewFromFloat(25.00))
		gomega.Expect(fee.StringFixed(2)).To(gomega.Equal("1.03"))
	})

	ginkgo.It("should compute the fee for the end-to-end scenario amount", func() {
		// 250.00 * 0.029 + 0.30 = 7.55
		fee := fees.Calculate(decimal.NewFromFloat(250.00))
		gomega.Expect(fee.StringFixed(2)).To(gomega.Equal("7.55"))
	})

	ginkgo.It("should be deterministic", func() {
		a := decimal.NewFromFloat(1234.56)
		gomega.Expect(fees.Calculate(a).Equal(fees.Calculate(a))).To(gomega.BeTrue())
	})
})
