package main

import (
	"fmt"
	"log"
	"os"

	"github.com/nholding/fin-model-engine/internal/adjustment"
	"github.com/nholding/fin-model-engine/internal/engineconfig"
	"github.com/nholding/fin-model-engine/internal/graph"
	"github.com/nholding/fin-model-engine/internal/period"
	"github.com/nholding/fin-model-engine/internal/strategy"
)

func main() {
	fmt.Println("Hello World")

	opts := engineconfig.Load()
	opts.ApplyLogging()

	g := graph.New(opts, nil, nil, nil, nil)

	if err := g.AddDataItem("Revenue", map[period.Period]float64{"2024": 1000, "2025": 1100}); err != nil {
		log.Fatalf("error adding Revenue: %v", err)
	}
	if err := g.AddDataItem("COGS", map[period.Period]float64{"2024": 400, "2025": 440}); err != nil {
		log.Fatalf("error adding COGS: %v", err)
	}
	if err := g.AddCalculation("GrossProfit", []string{"Revenue", "COGS"}, strategy.KeySubtraction, nil, nil, ""); err != nil {
		log.Fatalf("error adding GrossProfit: %v", err)
	}
	if err := g.AddPeriod("2024"); err != nil {
		log.Fatalf("error adding period: %v", err)
	}
	if err := g.AddPeriod("2025"); err != nil {
		log.Fatalf("error adding period: %v", err)
	}

	if issues := g.Validate(); len(issues) > 0 {
		fmt.Println("❌ Graph validation failed! Application cannot continue.")
		for _, iss := range issues {
			fmt.Println("   →", iss.Message)
		}
		os.Exit(1)
	}

	got, err := g.Calculate("GrossProfit", "2025")
	if err != nil {
		log.Fatalf("error calculating GrossProfit: %v", err)
	}
	fmt.Printf("GrossProfit 2025: %.2f\n", got.Number)

	scenarioBoost, err := adjustment.New("Revenue", "2025", 1.15, adjustment.KindMultiplicative, 0, []string{"upside"}, "upside-case", "15% revenue uplift", "cli-demo")
	if err != nil {
		log.Fatalf("error building adjustment: %v", err)
	}
	if err := g.AddAdjustment(scenarioBoost); err != nil {
		log.Fatalf("error adding adjustment: %v", err)
	}

	adjusted, err := g.CalculateAdjusted("GrossProfit", "2025")
	if err != nil {
		log.Fatalf("error calculating adjusted GrossProfit: %v", err)
	}
	fmt.Printf("GrossProfit 2025 (upside-case): %.2f\n", adjusted.Number)
}
