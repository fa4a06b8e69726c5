package seed

import (
	"context"
	"fmt"
	"time"

	"carpool-backend/internal/models"
	"carpool-backend/internal/services"

	"go.uber.org/zap"
)

// RouteCreator создание маршрута с валидацией и индексацией
type RouteCreator interface {
	CreateRoute(ctx context.Context, driverID string, in services.CreateRouteInput) (*models.Route, error)
}

// Точки Хошимина
var (
	benThanhMarket     = models.Place{Address: "Ben Thanh Market, District 1", Lat: 10.7720, Lng: 106.6983}
	notreDame          = models.Place{Address: "Notre Dame Cathedral, District 1", Lat: 10.7797, Lng: 106.6992}
	independencePalace = models.Place{Address: "Independence Palace, District 1", Lat: 10.7770, Lng: 106.6954}
	centralPostOffice  = models.Place{Address: "Saigon Central Post Office, District 1", Lat: 10.7799, Lng: 106.6996}
	buiVien            = models.Place{Address: "Bui Vien Street, District 1", Lat: 10.7677, Lng: 106.6934}
	thaoDien           = models.Place{Address: "Thao Dien, District 2", Lat: 10.8027, Lng: 106.7344}
	crescentMall       = models.Place{Address: "Crescent Mall, District 2", Lat: 10.7297, Lng: 106.7179}
	warRemnants        = models.Place{Address: "War Remnants Museum, District 3", Lat: 10.7793, Lng: 106.6928}
	vinhNghiem         = models.Place{Address: "Vinh Nghiem Pagoda, District 3", Lat: 10.7833, Lng: 106.6889}
	saigonPort         = models.Place{Address: "Saigon Port, District 4", Lat: 10.7667, Lng: 106.7056}
	chinatown          = models.Place{Address: "Chinatown (Cho Lon), District 5", Lat: 10.7520, Lng: 106.6620}
	binhTayMarket      = models.Place{Address: "Binh Tay Market, District 5", Lat: 10.7500, Lng: 106.6510}
	phuMyHung          = models.Place{Address: "Phu My Hung, District 7", Lat: 10.7320, Lng: 106.7210}
	vivoCity           = models.Place{Address: "SC VivoCity, District 7", Lat: 10.7297, Lng: 106.7040}
	hoaHungStation     = models.Place{Address: "Hoa Hung Station, District 10", Lat: 10.7720, Lng: 106.6680}
	damSenPark         = models.Place{Address: "Dam Sen Park, District 11", Lat: 10.7370, Lng: 106.6420}
	landmark81         = models.Place{Address: "Landmark 81, Thu Duc City", Lat: 10.7947, Lng: 106.7219}
)

type plannedRoute struct {
	driverID string
	from, to models.Place
	hour     int
	minute   int
	mode     models.TransportMode
}

var plan = []plannedRoute{
	{"driver1", benThanhMarket, thaoDien, 8, 0, models.TransportModeCar},
	{"driver2", notreDame, phuMyHung, 9, 30, models.TransportModeCar},
	{"driver3", independencePalace, warRemnants, 10, 15, models.TransportModeScooter},
	{"driver4", thaoDien, benThanhMarket, 11, 0, models.TransportModeScooter},
	{"driver5", phuMyHung, notreDame, 13, 30, models.TransportModeCar},
	{"driver6", centralPostOffice, chinatown, 7, 30, models.TransportModeScooter},
	{"driver7", buiVien, crescentMall, 8, 45, models.TransportModeCar},
	{"driver8", vinhNghiem, vivoCity, 9, 15, models.TransportModeScooter},
	{"driver9", saigonPort, hoaHungStation, 10, 0, models.TransportModeCar},
	{"driver10", binhTayMarket, damSenPark, 10, 45, models.TransportModeScooter},
	{"driver11", landmark81, benThanhMarket, 11, 30, models.TransportModeCar},
	{"driver12", landmark81, thaoDien, 12, 15, models.TransportModeScooter},
	{"driver13", notreDame, binhTayMarket, 13, 0, models.TransportModeCar},
	{"driver14", crescentMall, phuMyHung, 13, 45, models.TransportModeScooter},
	{"driver15", warRemnants, hoaHungStation, 14, 30, models.TransportModeCar},
	{"driver16", saigonPort, damSenPark, 15, 15, models.TransportModeScooter},
	{"driver17", chinatown, landmark81, 16, 0, models.TransportModeCar},
	{"driver18", vivoCity, buiVien, 16, 45, models.TransportModeScooter},
	{"driver19", hoaHungStation, crescentMall, 17, 30, models.TransportModeCar},
	{"driver20", damSenPark, vinhNghiem, 18, 15, models.TransportModeScooter},
	{"driver21", landmark81, saigonPort, 19, 0, models.TransportModeCar},
	{"driver22", centralPostOffice, vivoCity, 19, 45, models.TransportModeScooter},
	{"driver23", thaoDien, chinatown, 20, 30, models.TransportModeCar},
	{"driver24", warRemnants, landmark81, 21, 15, models.TransportModeScooter},
	{"driver25", saigonPort, benThanhMarket, 22, 0, models.TransportModeCar},
}

// HCMC часовой пояс маршрутов (UTC+7, без перехода на летнее время)
var HCMC = time.FixedZone("ICT", 7*60*60)

// departureAt ближайшее после now время hour:minute по часам Хошимина
func departureAt(now time.Time, hour, minute int) time.Time {
	local := now.In(HCMC)
	at := time.Date(local.Year(), local.Month(), local.Day(), hour, minute, 0, 0, HCMC)
	if !at.After(now) {
		at = at.AddDate(0, 0, 1)
	}
	return at.UTC()
}

// Routes строит входные данные маршрутов относительно now
func Routes(now time.Time) map[string]services.CreateRouteInput {
	out := make(map[string]services.CreateRouteInput, len(plan))
	for _, p := range plan {
		out[p.driverID] = services.CreateRouteInput{
			From: services.NewPlaceInput(p.from.Address, p.from.Lat, p.from.Lng),
			To:   services.NewPlaceInput(p.to.Address, p.to.Lat, p.to.Lng),
			RouteLine: models.LineString{
				Type:        models.LineStringType,
				Coordinates: [][]float64{{p.from.Lng, p.from.Lat}, {p.to.Lng, p.to.Lat}},
			},
			DepartureTime: departureAt(now, p.hour, p.minute).Format(time.RFC3339),
			TransportMode: p.mode,
		}
	}
	return out
}

// Run создает маршруты из плана; возвращает число созданных
func Run(ctx context.Context, routes RouteCreator, now time.Time, log *zap.Logger) (int, error) {
	inputs := Routes(now)
	created := 0
	for _, p := range plan {
		route, err := routes.CreateRoute(ctx, p.driverID, inputs[p.driverID])
		if err != nil {
			return created, fmt.Errorf("маршрут водителя %s: %w", p.driverID, err)
		}
		created++
		log.Debug("Маршрут добавлен",
			zap.String("route_id", route.ID),
			zap.String("from", p.from.Address),
			zap.String("to", p.to.Address))
	}
	log.Info("Маршруты загружены", zap.Int("routes", created))
	return created, nil
}
