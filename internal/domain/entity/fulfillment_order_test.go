package entity_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/oms-router/internal/domain/entity"
)

func decisionFor(locationID string) *entity.RoutingDecision {
	return &entity.RoutingDecision{
		AlgorithmVersion: entity.RoutingAlgorithmVersion,
		Candidates:       []entity.CandidateScore{{LocationID: locationID, TotalScore: 80}},
		Selected:         locationID,
		Reason:           entity.ReasonOnlyCandidate,
	}
}

func TestFulfillmentOrder_CicloCompleto(t *testing.T) {
	now := time.Now()
	o := &entity.FulfillmentOrder{Status: entity.StatusPending}

	require.NoError(t, o.TransitionTo(entity.StatusAnalyzing, now))
	require.NoError(t, o.Assign(decisionFor("loc-a"), now))
	require.NotNil(t, o.AssignedLocationID)
	assert.Equal(t, "loc-a", *o.AssignedLocationID)
	require.NoError(t, o.TransitionTo(entity.StatusPreparing, now))
	require.NoError(t, o.TransitionTo(entity.StatusShipped, now))
	require.NoError(t, o.TransitionTo(entity.StatusDelivered, now))

	assert.Equal(t, entity.StatusDelivered, o.Status)
	assert.NotNil(t, o.AnalyzingAt)
	assert.NotNil(t, o.AssignedAt)
	assert.NotNil(t, o.ShippedAt)
	assert.NotNil(t, o.DeliveredAt)
	assert.True(t, o.Status.Terminal())
}

func TestFulfillmentOrder_NoSaltaEstados(t *testing.T) {
	now := time.Now()
	o := &entity.FulfillmentOrder{Status: entity.StatusPending}

	assert.Error(t, o.TransitionTo(entity.StatusPreparing, now), "pending no puede saltar a preparing")
	assert.Error(t, o.TransitionTo(entity.StatusAssigned, now), "assigned solo vía Assign")
	assert.Error(t, o.Assign(decisionFor("loc-a"), now), "Assign exige analyzing")
	assert.Equal(t, entity.StatusPending, o.Status)
}

func TestFulfillmentOrder_AssignExigeDecisionValida(t *testing.T) {
	now := time.Now()
	o := &entity.FulfillmentOrder{Status: entity.StatusAnalyzing}

	assert.Error(t, o.Assign(&entity.RoutingDecision{Selected: "x", Reason: entity.ReasonHighestScore}, now))
	bad := decisionFor("loc-a")
	bad.Reason = ""
	assert.Error(t, o.Assign(bad, now))
	other := decisionFor("loc-a")
	other.Selected = "loc-z"
	assert.Error(t, o.Assign(other, now))
	assert.Equal(t, entity.StatusAnalyzing, o.Status)
	assert.Nil(t, o.AssignedLocationID)
}

func TestFulfillmentStatus_Cancelacion(t *testing.T) {
	for _, st := range []entity.FulfillmentStatus{
		entity.StatusPending, entity.StatusAnalyzing, entity.StatusAssigned, entity.StatusPreparing,
	} {
		assert.True(t, st.CanTransitionTo(entity.StatusCancelled), "cancelable desde %s", st)
	}
	for _, st := range []entity.FulfillmentStatus{
		entity.StatusShipped, entity.StatusDelivered, entity.StatusCancelled,
	} {
		assert.False(t, st.CanTransitionTo(entity.StatusCancelled), "no cancelable desde %s", st)
	}
}
