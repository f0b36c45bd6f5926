package xop

import (
	"github.com/sirosfoundation/go-xop/pkg/attachment"
)

// OptimizationPolicy decides whether binary content is sent as a separate
// part or inlined as base64. eligible is the producer's hint.
type OptimizationPolicy interface {
	ShouldOptimize(obj attachment.Object, eligible bool) (bool, error)
}

// PolicyFunc adapts a function to OptimizationPolicy
type PolicyFunc func(obj attachment.Object, eligible bool) (bool, error)

// ShouldOptimize calls f
func (f PolicyFunc) ShouldOptimize(obj attachment.Object, eligible bool) (bool, error) {
	return f(obj, eligible)
}

var (
	// PolicyDefault optimizes exactly the content the producer marked eligible
	PolicyDefault OptimizationPolicy = PolicyFunc(func(_ attachment.Object, eligible bool) (bool, error) {
		return eligible, nil
	})

	// PolicyAll optimizes all binary content
	PolicyAll OptimizationPolicy = PolicyFunc(func(attachment.Object, bool) (bool, error) {
		return true, nil
	})
)

// ThresholdPolicy optimizes eligible content of at least minSize bytes.
// Smaller content is inlined. Deferred content is loaded to measure it.
func ThresholdPolicy(minSize int) OptimizationPolicy {
	return PolicyFunc(func(obj attachment.Object, eligible bool) (bool, error) {
		if !eligible {
			return false, nil
		}
		if minSize <= 0 {
			return true, nil
		}
		data, err := attachment.Load(obj)
		if err != nil {
			return false, err
		}
		return len(data) >= minSize, nil
	})
}
