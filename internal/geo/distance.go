// Package geo содержит геодезические расчеты, используемые при подборе волонтеров.
package geo

import (
	"math"

	"github.com/paulmach/orb"
	orbgeo "github.com/paulmach/orb/geo"
)

// EarthRadiusMeters - средний радиус Земли для формулы гаверсинусов
const EarthRadiusMeters = 6371000.0

// orb считает границы по экваториальному радиусу WGS84, поэтому рамку немного расширяем
const boundPadFactor = 1.01

// Distance возвращает расстояние по дуге большого круга в метрах.
func Distance(lat1, lng1, lat2, lng2 float64) float64 {
	phi1 := lat1 * math.Pi / 180
	phi2 := lat2 * math.Pi / 180
	dPhi := (lat2 - lat1) * math.Pi / 180
	dLambda := (lng2 - lng1) * math.Pi / 180

	sinPhi := math.Sin(dPhi / 2)
	sinLambda := math.Sin(dLambda / 2)
	a := sinPhi*sinPhi + math.Cos(phi1)*math.Cos(phi2)*sinLambda*sinLambda
	// защита от выхода за [0,1] из-за погрешности округления
	a = math.Min(1, math.Max(0, a))

	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return EarthRadiusMeters * c
}

// BoundAround возвращает прямоугольную рамку, гарантированно содержащую круг радиуса radius
// вокруг точки. Используется как быстрый префильтр перед точным расчетом Distance.
func BoundAround(lat, lng, radius float64) orb.Bound {
	return orbgeo.NewBoundAroundPoint(orb.Point{lng, lat}, radius*boundPadFactor)
}

// Within сообщает, лежит ли точка (lat2, lng2) не дальше radius метров от (lat1, lng1)
func Within(lat1, lng1, lat2, lng2, radius float64) bool {
	if !boundContains(BoundAround(lat1, lng1, radius), orb.Point{lng2, lat2}) {
		return false
	}
	return Distance(lat1, lng1, lat2, lng2) <= radius
}

// boundContains учитывает рамки, пересекающие меридиан ±180: у них Min по долготе больше Max
func boundContains(b orb.Bound, p orb.Point) bool {
	if b.Left() <= b.Right() {
		return b.Contains(p)
	}
	if p.Lat() < b.Bottom() || p.Lat() > b.Top() {
		return false
	}
	return p.Lon() >= b.Left() || p.Lon() <= b.Right()
}
