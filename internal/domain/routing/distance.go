// Package routing contiene el motor de decisión de fulfillment: estimadores de distancia y
// costo de envío, normalización de sub-scores y ranking de ubicaciones candidatas.
// Todo el paquete es puro: no hace I/O ni modifica estado compartido.
package routing

import (
	"fmt"
	"math"

	"github.com/jhoicas/oms-router/internal/domain"
	"github.com/jhoicas/oms-router/internal/domain/entity"
)

const (
	// EarthRadiusKm radio medio de la Tierra usado por Haversine.
	EarthRadiusKm = 6371.0

	// PenaltyDistanceNoLocationCoords distancia asignada cuando la ubicación no tiene coordenadas.
	// Deja la ubicación con score de distancia 0.
	PenaltyDistanceNoLocationCoords = 999.0

	// PenaltyDistanceNoCustomerCoords distancia asignada cuando la dirección de envío no tiene
	// coordenadas. Es igual para todas las ubicaciones, así que no altera el orden relativo por distancia.
	PenaltyDistanceNoCustomerCoords = 50.0
)

// DistanceEstimator calcula la distancia entre una ubicación y el destino del envío.
// Si falta o es inválida alguna coordenada devuelve una distancia de penalización junto con
// un error que envuelve domain.ErrInvalidCoordinates; la distancia siempre es utilizable.
type DistanceEstimator interface {
	DistanceKm(location, destination *entity.Coordinates) (float64, error)
}

// HaversineEstimator distancia geodésica (great-circle) con la fórmula de Haversine.
type HaversineEstimator struct{}

// DistanceKm implementa DistanceEstimator.
func (HaversineEstimator) DistanceKm(location, destination *entity.Coordinates) (float64, error) {
	if location == nil || !location.Valid() {
		return PenaltyDistanceNoLocationCoords, fmt.Errorf("%w: ubicación sin coordenadas", domain.ErrInvalidCoordinates)
	}
	if destination == nil || !destination.Valid() {
		return PenaltyDistanceNoCustomerCoords, fmt.Errorf("%w: destino sin coordenadas", domain.ErrInvalidCoordinates)
	}
	return Haversine(*location, *destination), nil
}

// Haversine distancia en km entre dos puntos.
func Haversine(a, b entity.Coordinates) float64 {
	phi1 := a.Lat * math.Pi / 180
	phi2 := b.Lat * math.Pi / 180
	dPhi := (b.Lat - a.Lat) * math.Pi / 180
	dLambda := (b.Lng - a.Lng) * math.Pi / 180

	h := math.Sin(dPhi/2)*math.Sin(dPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(dLambda/2)*math.Sin(dLambda/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
	return EarthRadiusKm * c
}
