package oracle

import (
	"testing"

	"cosmossdk.io/math"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stableunit/policyd/internal/lib/token"
)

const dollar = token.Address("SUD")

func TestConsultQuotesAtPostedPrice(t *testing.T) {
	o := NewPosted()
	o.Post(dollar, math.NewIntWithDecimal(102, 16)) // $1.02

	out, err := o.Consult(dollar, math.NewIntWithDecimal(100, 18))
	require.NoError(t, err)
	assert.Equal(t, math.NewIntWithDecimal(102, 18), out)
}

func TestConsultUnknownToken(t *testing.T) {
	o := NewPosted()
	_, err := o.Consult("SUB", math.NewIntWithDecimal(1, 18))
	assert.ErrorIs(t, err, ErrUnknownToken)
}

func TestConsultRejectsNonPositivePrice(t *testing.T) {
	o := NewPosted()
	o.Post(dollar, math.ZeroInt())
	_, err := o.Consult(dollar, math.NewIntWithDecimal(1, 18))
	assert.ErrorIs(t, err, ErrNoPrice)
}

func TestUpdateFailureLeavesConsultWorking(t *testing.T) {
	o := NewPosted()
	o.Post(dollar, One)
	o.FailUpdates(true)

	assert.ErrorIs(t, o.Update(), ErrStalePeer)

	out, err := o.Consult(dollar, One)
	require.NoError(t, err)
	assert.Equal(t, One, out)

	o.FailUpdates(false)
	require.NoError(t, o.Update())
	assert.False(t, o.LastUpdated().IsZero())
}
