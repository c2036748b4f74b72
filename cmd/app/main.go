// entry point to the booking service
package main

import (
	"github.com/ds124wfegd/tithi-booking/config"
	"github.com/ds124wfegd/tithi-booking/internal/appServer"
	"github.com/sirupsen/logrus"
)

func main() {
	logrus.SetFormatter(new(logrus.JSONFormatter))

	viperInstance, err := config.LoadConfig()
	if err != nil {
		logrus.Fatalf("Cannot load config. Error: {%s}", err.Error())
	}

	cfg, err := config.ParseConfig(viperInstance)
	if err != nil {
		logrus.Fatalf("Cannot parse config. Error: {%s}", err.Error())
	}

	appServer.NewServer(cfg)
}
