package exclusion_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/chris-alexander-pop/gmsec-bus/pkg/bus/exclusion"
)

func TestExcludeAndIsExcluded(t *testing.T) {
	f := exclusion.New()
	assert.False(t, f.IsExcluded("GMSEC.TEST.A"))

	f.Exclude("GMSEC.TEST.>")
	assert.True(t, f.IsExcluded("GMSEC.TEST.A"))
	assert.False(t, f.IsExcluded("GMSEC.OTHER.A"))
}

func TestRemoveExcluded(t *testing.T) {
	f := exclusion.New()
	f.Exclude("GMSEC.TEST.A")

	assert.True(t, f.RemoveExcluded("GMSEC.TEST.A"))
	assert.False(t, f.RemoveExcluded("GMSEC.TEST.A"))
	assert.False(t, f.IsExcluded("GMSEC.TEST.A"))
}
