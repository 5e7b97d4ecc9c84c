package config_test

import (
	"context"
	"fmt"

	"github.com/gridcalc/gridcalc/pkg/config"
)

func ExampleCUEParser_ParseInline() {
	pc, err := config.NewCUEParser().ParseInline(context.Background(), `
engine: {
	mode:      "parallel"
	max_depth: 256
}
`)
	if err != nil {
		panic(err)
	}
	fmt.Println(pc.Engine.Mode, pc.Engine.MaxDepth, pc.Engine.Locale)
	// Output: parallel 256 en-US
}
