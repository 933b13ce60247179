package solver_test

import (
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestSolverScenarios(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Solver Scenarios Suite")
}
