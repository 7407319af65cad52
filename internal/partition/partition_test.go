package partition

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyFirstMatchWins(t *testing.T) {
	c := Default()

	tests := []struct {
		path      string
		partition string
		authority float64
	}{
		{"node_modules/lodash/index.js", "third_party", 0.3},
		{"pkg/node_modules/x/y.js", "third_party", 0.3},
		{"vendor/golang.org/x/sync/errgroup.go", "third_party", 0.3},
		{"api/types.gen.ts", "generated", 0.2},
		{"proto/service.pb.go", "generated", 0.2},
		{"core/scheduler.ts", "dom0", 1.0},
		{"docs/guide.md", "project", 0.5},
		{"src/index.ts", "project", 0.5},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got := c.Classify(tt.path)
			assert.Equal(t, tt.partition, got.Partition)
			assert.InDelta(t, tt.authority, got.Authority, 1e-9)
		})
	}
}

func TestClassifyDeterministic(t *testing.T) {
	c := Default()
	first := c.Classify("src/a.ts")
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, c.Classify("src/a.ts"))
	}
}

func TestAuthorityFactor(t *testing.T) {
	assert.InDelta(t, 0.5, AuthorityFactor(0), 1e-9)
	assert.InDelta(t, 0.75, AuthorityFactor(0.5), 1e-9)
	assert.InDelta(t, 1.0, AuthorityFactor(1), 1e-9)
	assert.InDelta(t, 0.65, AuthorityFactor(0.3), 1e-9)
}

func TestCustomRuleOrdering(t *testing.T) {
	c := New([]Rule{
		{Pattern: "special/**", Partition: "dom0", Authority: 1.0},
		{Pattern: "**/*.ts", Partition: "lang_ts", Authority: 0.6},
	})
	assert.Equal(t, "dom0", c.Classify("special/a.ts").Partition)
	assert.Equal(t, "lang_ts", c.Classify("other/a.ts").Partition)
	assert.Equal(t, "project", c.Classify("other/a.rb").Partition)
}
