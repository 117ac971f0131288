package model

import (
	"github.com/LeonardoBeccarini/agri_telemetry/internal/model/entities"
	"github.com/LeonardoBeccarini/agri_telemetry/internal/model/messages"
)

// Alias per esporre tipi comuni ai servizi

type (
	Reading                = messages.Reading
	NPK                    = messages.NPK
	Alert                  = messages.Alert
	IrrigationStateChanged = messages.IrrigationStateChanged
	ChannelName            = entities.ChannelName
	ChannelSpec            = entities.ChannelSpec
	ThresholdSet           = entities.ThresholdSet
	IrrigationStatus       = entities.IrrigationStatus
	IrrigationCommand      = entities.IrrigationCommand
	SystemStatus           = entities.SystemStatus
)

const (
	IrrigationActive   = entities.IrrigationActive
	IrrigationInactive = entities.IrrigationInactive
)
