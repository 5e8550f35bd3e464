package routing_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/oms-router/internal/domain"
	"github.com/jhoicas/oms-router/internal/domain/entity"
	"github.com/jhoicas/oms-router/internal/domain/routing"
)

func TestHaversine_UnGradoDeLatitud(t *testing.T) {
	a := entity.Coordinates{Lat: 0, Lng: 0}
	b := entity.Coordinates{Lat: 1, Lng: 0}
	assert.InDelta(t, 111.19, routing.Haversine(a, b), 0.01)
	assert.InDelta(t, 0, routing.Haversine(a, a), 1e-9)
}

func TestHaversineEstimator_PenalizaSinCoordenadas(t *testing.T) {
	est := routing.HaversineEstimator{}
	customer := &entity.Coordinates{Lat: -34.6037, Lng: -58.3816}

	km, err := est.DistanceKm(nil, customer)
	require.ErrorIs(t, err, domain.ErrInvalidCoordinates)
	assert.Equal(t, routing.PenaltyDistanceNoLocationCoords, km)

	km, err = est.DistanceKm(customer, nil)
	require.ErrorIs(t, err, domain.ErrInvalidCoordinates)
	assert.Equal(t, routing.PenaltyDistanceNoCustomerCoords, km)

	km, err = est.DistanceKm(&entity.Coordinates{Lat: 91, Lng: 0}, customer)
	require.ErrorIs(t, err, domain.ErrInvalidCoordinates)
	assert.Equal(t, routing.PenaltyDistanceNoLocationCoords, km)

	km, err = est.DistanceKm(customer, customer)
	require.NoError(t, err)
	assert.InDelta(t, 0, km, 1e-9)
}
