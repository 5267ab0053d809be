package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/angas/awattar-go/awattar"
	"github.com/angas/awattar-go/config"
	"github.com/angas/awattar-go/hours"
	"github.com/angas/awattar-go/publish"
	"github.com/angas/awattar-go/store"
	"github.com/angas/awattar-go/task"
	"github.com/angas/awattar-go/types"
	"github.com/lmittmann/tint"
	"gopkg.in/yaml.v3"
)

type entry struct {
	Object types.StateObject `yaml:"object"`
	Value  any               `yaml:"value"`
}

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	slog.SetDefault(slog.New(
		tint.NewHandler(os.Stderr, &tint.Options{
			Level:      slog.LevelDebug,
			TimeFormat: time.RFC3339Nano,
		}),
	))

	cnfg, err := config.Load(*configPath)
	if err != nil {
		panic(err)
	}
	if err := hours.SetLocation(cnfg.Publish.GetTimezone()); err != nil {
		panic(err)
	}

	memory := store.NewMemory()
	spotPrice := task.NewSpotPriceTask(
		slog.Default().With(slog.String("task", "spot_price")),
		awattar.New(cnfg.Awattar.ApiUrl, "awattar-go/dump"),
		memory,
		func() *config.AppConfig { return cnfg })

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	if err := spotPrice.Run(ctx); err != nil {
		os.Exit(1)
	}

	tree := make(map[string]entry)
	states := memory.States("")
	for _, id := range memory.Ids("") {
		if id == publish.RawdataId {
			continue
		}
		obj, _ := memory.Object(id)
		tree[id] = entry{Object: obj, Value: states[id].Val}
	}

	out, err := yaml.Marshal(tree)
	if err != nil {
		panic(err)
	}
	fmt.Print(string(out))
}
