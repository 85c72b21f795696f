package main

import (
	"os"
	"testing"

	"github.com/nfx/storable/internal/qa"
)

func TestMain(t *testing.T) {
	qa.RunOnlyInDebug(t)
	os.Setenv("STORABLE_COLLECTIONS_LOCALE", "en")
	os.Setenv("STORABLE_LOG_LEVEL", "trace")
	os.Setenv("STORABLE_LOG_FORMAT", "file")
	os.Setenv("STORABLE_LOG_FILE", "$PWD/dist/$APP.log")

	main()
}
