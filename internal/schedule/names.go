package schedule

import "raceday-tracker/internal/domain"

// raceNames is the draw pool for race titles; names are assigned without
// replacement within one day.
var raceNames = []string{
	"Windsor Stakes",
	"Newmarket Handicap",
	"Ascot Gold Cup",
	"Epsom Derby",
	"Cheltenham Cup",
	"Goodwood Stakes",
	"Doncaster Handicap",
	"York Stakes",
	"Chester Cup",
	"Kempton Stakes",
	"Sandown Handicap",
	"Haydock Cup",
	"Aintree Stakes",
	"Leicester Handicap",
	"Nottingham Cup",
	"Warwick Stakes",
	"Wolverhampton Handicap",
	"Lingfield Cup",
	"Southwell Stakes",
	"Catterick Handicap",
	"Ripon Cup",
	"Thirsk Stakes",
	"Redcar Handicap",
	"Pontefract Cup",
	"Beverley Stakes",
	"Carlisle Handicap",
	"Hamilton Cup",
	"Musselburgh Stakes",
	"Perth Handicap",
	"Ayr Cup",
	"Royal Stakes",
	"Classic Handicap",
	"Champion Cup",
	"Premier Stakes",
	"Elite Handicap",
	"Grand Cup",
	"Supreme Stakes",
	"Imperial Handicap",
	"Noble Cup",
	"Heritage Stakes",
	"Victoria Handicap",
	"Diamond Cup",
	"Platinum Stakes",
	"Golden Handicap",
	"Silver Cup",
	"Bronze Stakes",
	"Crown Handicap",
	"Jubilee Cup",
	"Coronation Stakes",
	"Commonwealth Handicap",
}

type venueSeed struct {
	name     string
	location string
}

var venueSeeds = []venueSeed{
	{"Ascot Racecourse", "Ascot, United Kingdom"},
	{"Epsom Downs", "Epsom, United Kingdom"},
	{"Cheltenham Racecourse", "Cheltenham, United Kingdom"},
	{"Aintree Racecourse", "Liverpool, United Kingdom"},
	{"Newmarket Racecourse", "Newmarket, United Kingdom"},
	{"Goodwood Racecourse", "Chichester, United Kingdom"},
	{"York Racecourse", "York, United Kingdom"},
	{"Churchill Downs", "Louisville, United States"},
	{"Belmont Park", "Elmont, United States"},
	{"Santa Anita Park", "Arcadia, United States"},
	{"Saratoga Race Course", "Saratoga Springs, United States"},
	{"Keeneland", "Lexington, United States"},
	{"Longchamp Racecourse", "Paris, France"},
	{"Chantilly Racecourse", "Chantilly, France"},
	{"Deauville Racecourse", "Deauville, France"},
	{"Flemington Racecourse", "Melbourne, Australia"},
	{"Royal Randwick", "Sydney, Australia"},
	{"Tokyo Racecourse", "Tokyo, Japan"},
	{"Nakayama Racecourse", "Funabashi, Japan"},
	{"Meydan Racecourse", "Dubai, United Arab Emirates"},
	{"Sha Tin Racecourse", "Hong Kong"},
	{"Happy Valley Racecourse", "Hong Kong"},
	{"Veliefendi Hipodromu", "Istanbul, Turkey"},
	{"Ankara Hipodromu", "Ankara, Turkey"},
	{"Adana Hipodromu", "Adana, Turkey"},
	{"Woodbine Racetrack", "Toronto, Canada"},
	{"Palermo Racecourse", "Buenos Aires, Argentina"},
}

var weathers = []domain.Weather{
	domain.WeatherSunny,
	domain.WeatherFoggy,
	domain.WeatherRainy,
	domain.WeatherSnowy,
	domain.WeatherCloudy,
	domain.WeatherWindy,
}
