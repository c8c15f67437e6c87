package centroid

import "github.com/couchcryptid/incident-geocode-service/internal/domain"

var riversideCounty = domain.Coordinates{Lat: 33.7437, Lon: -115.9925}

// Sheriff/fire station service areas. Coordinates are the approximate center
// of each station's patrol area, not the station building.
var riversideStations = map[string]domain.Coordinates{
	"southwest":      {Lat: 33.5316, Lon: -117.1686},
	"lake elsinore":  {Lat: 33.6681, Lon: -117.3273},
	"perris":         {Lat: 33.7825, Lon: -117.2286},
	"moreno valley":  {Lat: 33.9425, Lon: -117.2297},
	"jurupa valley":  {Lat: 33.9972, Lon: -117.4855},
	"hemet":          {Lat: 33.7475, Lon: -116.9720},
	"cabazon":        {Lat: 33.9175, Lon: -116.7875},
	"palm desert":    {Lat: 33.7222, Lon: -116.3745},
	"thermal":        {Lat: 33.6403, Lon: -116.1394},
	"colorado river": {Lat: 33.6103, Lon: -114.5964},
}

var riversideAreas = map[string]domain.Coordinates{
	"BANNING":            {Lat: 33.9256, Lon: -116.8764},
	"BEAUMONT":           {Lat: 33.9295, Lon: -116.9773},
	"BLYTHE":             {Lat: 33.6103, Lon: -114.5964},
	"CALIMESA":           {Lat: 34.0039, Lon: -117.0617},
	"CANYON LAKE":        {Lat: 33.6850, Lon: -117.2731},
	"CATHEDRAL CITY":     {Lat: 33.7797, Lon: -116.4653},
	"COACHELLA":          {Lat: 33.6803, Lon: -116.1739},
	"CORONA":             {Lat: 33.8753, Lon: -117.5664},
	"DESERT HOT SPRINGS": {Lat: 33.9611, Lon: -116.5017},
	"EASTVALE":           {Lat: 33.9636, Lon: -117.5642},
	"HEMET":              {Lat: 33.7475, Lon: -116.9720},
	"IDYLLWILD":          {Lat: 33.7400, Lon: -116.7189},
	"INDIAN WELLS":       {Lat: 33.7175, Lon: -116.3419},
	"INDIO":              {Lat: 33.7206, Lon: -116.2156},
	"JURUPA VALLEY":      {Lat: 33.9972, Lon: -117.4855},
	"LA QUINTA":          {Lat: 33.6634, Lon: -116.3100},
	"LAKE ELSINORE":      {Lat: 33.6681, Lon: -117.3273},
	"MECCA":              {Lat: 33.5717, Lon: -116.0775},
	"MENIFEE":            {Lat: 33.6971, Lon: -117.1850},
	"MORENO VALLEY":      {Lat: 33.9425, Lon: -117.2297},
	"MURRIETA":           {Lat: 33.5539, Lon: -117.2139},
	"NORCO":              {Lat: 33.9311, Lon: -117.5487},
	"PALM DESERT":        {Lat: 33.7222, Lon: -116.3745},
	"PALM SPRINGS":       {Lat: 33.8303, Lon: -116.5453},
	"PERRIS":             {Lat: 33.7825, Lon: -117.2286},
	"RANCHO MIRAGE":      {Lat: 33.7397, Lon: -116.4128},
	"RIVERSIDE":          {Lat: 33.9533, Lon: -117.3962},
	"SAN JACINTO":        {Lat: 33.7839, Lon: -116.9586},
	"TEMECULA":           {Lat: 33.4936, Lon: -117.1484},
	"THERMAL":            {Lat: 33.6403, Lon: -116.1394},
	"WILDOMAR":           {Lat: 33.5989, Lon: -117.2800},
	"WINCHESTER":         {Lat: 33.7067, Lon: -117.0842},
	"ANZA":               {Lat: 33.5550, Lon: -116.6739},
}
