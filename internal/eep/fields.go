package eep

// Field names used in Composite values.
const (
	FieldButton        = "button"
	FieldPosition      = "position"
	FieldPressed       = "pressed"
	FieldSecondAction  = "second_action"
	FieldSecondButton  = "second_button"
	FieldContact       = "contact"
	FieldLearn         = "learn"
	FieldSupplyVoltage = "supply_voltage"
	FieldIlluminance   = "illuminance"
	FieldTemperature   = "temperature"
	FieldHumidity      = "humidity"
	FieldMotion        = "motion"
	FieldOccupancyBtn  = "occupancy_button"
	FieldConcentration = "concentration"
	FieldVOC           = "voc"
	FieldMode          = "mode"
	FieldTarget        = "target_temperature"
	FieldCurrent       = "current_temperature"
	FieldLocked        = "locked"
	FieldReading       = "reading"
	FieldTariff        = "tariff"
	FieldKind          = "kind"
	FieldWindSpeed     = "wind_speed"
	FieldNight         = "night"
	FieldRain          = "rain"
	FieldCommand       = "command"
	FieldOn            = "on"
	FieldDim           = "dim"
	FieldRamp          = "ramp"
	FieldState         = "state"
)
