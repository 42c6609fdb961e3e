package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"strings"

	"github.com/BaSui01/streamrelay/types"
)

// Built-in demo tool names.
const (
	GetWeatherTool = "getWeather"
	GetMoviesTool  = "getMovies"
)

type weatherArgs struct {
	Location string `json:"location"`
	Unit     string `json:"unit"`
}

// WeatherReport is the result of getWeather.
type WeatherReport struct {
	Location    string `json:"location"`
	Temperature int    `json:"temperature"`
	Unit        string `json:"unit"`
	Conditions  string `json:"conditions"`
}

var conditions = []string{"sunny", "cloudy", "rainy", "windy", "foggy"}

// seed derives stable fake data from the location so answers are repeatable.
func seed(location string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(strings.ToLower(strings.TrimSpace(location))))
	return h.Sum32()
}

func getWeather(_ context.Context, raw string) (string, error) {
	var args weatherArgs
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return "", fmt.Errorf("decode arguments: %w", err)
	}
	if strings.TrimSpace(args.Location) == "" {
		return "", fmt.Errorf("location is required")
	}
	if args.Unit == "" {
		args.Unit = "Celsius"
	}

	s := seed(args.Location)
	celsius := int(s%35) - 5
	report := WeatherReport{
		Location:    args.Location,
		Temperature: celsius,
		Unit:        args.Unit,
		Conditions:  conditions[s%uint32(len(conditions))],
	}
	switch args.Unit {
	case "Celsius":
	case "Fahrenheit":
		report.Temperature = celsius*9/5 + 32
	default:
		return "", fmt.Errorf("unit must be Celsius or Fahrenheit, got %q", args.Unit)
	}

	b, err := json.Marshal(report)
	return string(b), err
}

var movieCatalog = []string{
	"The Grand Budapest Hotel",
	"Spirited Away",
	"Arrival",
	"Paddington 2",
	"Parasite",
	"Amelie",
	"Dune",
}

func getMovies(_ context.Context, raw string) (string, error) {
	var args struct {
		Location string `json:"location"`
	}
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return "", fmt.Errorf("decode arguments: %w", err)
	}
	if strings.TrimSpace(args.Location) == "" {
		return "", fmt.Errorf("location is required")
	}

	s := int(seed(args.Location))
	showing := make([]string, 0, 3)
	for i := 0; i < 3; i++ {
		showing = append(showing, movieCatalog[(s+i)%len(movieCatalog)])
	}
	b, err := json.Marshal(map[string]any{"location": args.Location, "movies": showing})
	return string(b), err
}

// Builtins returns the demo tools registered at startup.
func Builtins() []Descriptor {
	return []Descriptor{
		{
			Name:        GetWeatherTool,
			Description: "Get the current weather for a location",
			Parameters: []types.ToolParameter{
				{Name: "location", Type: "string", Description: "City name, e.g. San Francisco", Required: true},
				{Name: "unit", Type: "string", Description: "Temperature unit", Enum: []string{"Celsius", "Fahrenheit"}, Required: true},
			},
			Invoke: getWeather,
		},
		{
			Name:        GetMoviesTool,
			Description: "List movies currently showing in a location",
			Parameters: []types.ToolParameter{
				{Name: "location", Type: "string", Description: "City name", Required: true},
			},
			Invoke: getMovies,
		},
	}
}

// RegisterBuiltins adds the demo tools to r.
func RegisterBuiltins(r *Registry) error {
	for _, d := range Builtins() {
		if err := r.Register(d); err != nil {
			return err
		}
	}
	return nil
}
