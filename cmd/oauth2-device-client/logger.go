package main

import "go.uber.org/zap"

func newLogger(environment string) (*zap.Logger, error) {
	if environment == EnvDevelopment {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
