package compare

import (
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestCompareSuite(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Comparison Driver Suite")
}
