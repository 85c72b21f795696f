package main

import (
	"context"

	"github.com/nfx/storable/app"
	"github.com/nfx/storable/collection"
	"github.com/nfx/storable/prometheus"
	"github.com/nfx/storable/store"
)

func main() {
	app.Run(context.Background(), app.Factories{
		"collections": collection.NewRegistry,
		"journal":     store.NewJournal,
		"metrics":     prometheus.NewPrometheus,
	})
}
