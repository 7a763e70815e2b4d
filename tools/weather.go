package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/mnemoworks/mnemo/core"
)

// cityWeather is one canned weather reading.
type cityWeather struct {
	TempF     int
	TempC     int
	Condition string
	Humidity  int
}

// cannedWeather covers the demo cities; anywhere else gets a
// synthetic reading.
var cannedWeather = map[string]cityWeather{
	"new york":      {TempF: 45, TempC: 7, Condition: "Cloudy", Humidity: 65},
	"los angeles":   {TempF: 72, TempC: 22, Condition: "Sunny", Humidity: 40},
	"chicago":       {TempF: 38, TempC: 3, Condition: "Windy", Humidity: 55},
	"miami":         {TempF: 82, TempC: 28, Condition: "Partly Cloudy", Humidity: 75},
	"seattle":       {TempF: 52, TempC: 11, Condition: "Rainy", Humidity: 80},
	"denver":        {TempF: 55, TempC: 13, Condition: "Clear", Humidity: 30},
	"san francisco": {TempF: 58, TempC: 14, Condition: "Foggy", Humidity: 70},
	"boston":        {TempF: 42, TempC: 6, Condition: "Overcast", Humidity: 60},
	"austin":        {TempF: 78, TempC: 26, Condition: "Sunny", Humidity: 45},
	"portland":      {TempF: 50, TempC: 10, Condition: "Drizzle", Humidity: 75},
}

var syntheticConditions = []string{"Sunny", "Cloudy", "Rainy", "Clear", "Windy", "Partly Cloudy"}

// Weather returns the weather lookup tool. rng drives synthetic
// readings for unknown cities; nil seeds from the clock.
func Weather(rng *rand.Rand) *Tool {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	var mu sync.Mutex

	return &Tool{
		Definition: core.ToolDefinition{
			Name:        "get_weather",
			Description: "Get the current weather for a city. Returns temperature (Fahrenheit and Celsius), condition, and humidity.",
			InputSchema: ObjectSchema(map[string]interface{}{
				"city": StringProperty("The name of the city to get weather for"),
			}, "city"),
		},
		Describe: func(args map[string]interface{}) string {
			return fmt.Sprintf("get_weather(%s)", stringArg(args, "city"))
		},
		Handler: func(ctx context.Context, params *core.ToolParams) (*core.ToolResult, error) {
			var in struct {
				City string `json:"city"`
			}
			_ = json.Unmarshal(params.Input, &in)

			if in.City == "" {
				return errorResult("Error: Missing required argument 'city'"), nil
			}

			var (
				w    cityWeather
				note string
			)
			if canned, ok := cannedWeather[strings.ToLower(strings.TrimSpace(in.City))]; ok {
				w = canned
			} else {
				mu.Lock()
				w.TempF = rng.Intn(61) + 30
				w.Condition = syntheticConditions[rng.Intn(len(syntheticConditions))]
				w.Humidity = rng.Intn(51) + 30
				mu.Unlock()
				w.TempC = int(math.Round(float64(w.TempF-32) * 5 / 9))
				note = "Weather data simulated (city not in database)"
			}

			var b strings.Builder
			fmt.Fprintf(&b, "Weather for %s:\n", in.City)
			fmt.Fprintf(&b, "  Temperature: %d°F (%d°C)\n", w.TempF, w.TempC)
			fmt.Fprintf(&b, "  Condition: %s\n", w.Condition)
			fmt.Fprintf(&b, "  Humidity: %d%%", w.Humidity)
			if note != "" {
				fmt.Fprintf(&b, "\n  Note: %s", note)
			}
			return &core.ToolResult{Observation: b.String()}, nil
		},
	}
}
