package state

import (
	"bytes"
	"testing"

	cmtlog "github.com/cometbft/cometbft/libs/log"
	"github.com/stretchr/testify/assert"
)

func TestTreeLoggerLevels(t *testing.T) {
	var buf bytes.Buffer
	lg := newTreeLogger(cmtlog.NewFilter(cmtlog.NewTMLogger(&buf), cmtlog.AllowError()))

	lg.Info("loaded version", "version", 3)
	lg.Debug("node cache miss")
	assert.Empty(t, buf.String())

	lg.With("tree", "council").Warn("pruning lagging")
	out := buf.String()
	assert.Contains(t, out, "pruning lagging")
	assert.Contains(t, out, "module=iavl")
	assert.Contains(t, out, "tree=council")
	assert.NotContains(t, out, "level=warn")
}
