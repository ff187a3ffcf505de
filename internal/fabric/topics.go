package fabric

// Topic namespace per §6: dot-separated <category>.<id>.<sub>, with no
// lawnberry prefix in-process (the MQTT bridge adds its TopicPrefix).
// Reserved categories named in spec.md are collected here so every
// subsystem spells the same literal strings.
const (
	CategorySensors     = "sensors"
	CategorySafety      = "safety"
	CategoryNavigation  = "navigation"
	CategoryPower       = "power"
	CategoryVision      = "vision"
	CategoryWeather     = "weather"
	CategorySystem      = "system"
	CategoryCommands    = "commands"
	CategoryResponses   = "responses"
	CategoryMaintenance = "maintenance"
	CategoryEmergency   = "emergency"
)

const (
	TopicSensorGNSS        = "sensors.gnss.reading"
	TopicSensorIMU         = "sensors.imu.reading"
	TopicSensorToF         = "sensors.tof.reading"
	TopicSensorEnvironment = "sensors.environment.reading"
	TopicSensorPower       = "sensors.power.reading"
	TopicSensorEncoder     = "sensors.encoder.status"
	TopicSensorVision      = "vision.detection"

	TopicPoseEstimate      = "navigation.pose.estimate"
	TopicPoseSafety        = "safety.pose.shortcut"
	TopicObstacleMap       = "safety.obstacles.map"
	TopicObstacleAlert     = "safety.obstacles.alert"
	TopicHazardAlert       = "safety.hazard.alert"
	TopicSafetyStatus      = "safety.status"
	TopicEmergencyStop     = "safety.emergency_stop"
	TopicEmergencyState    = "emergency.state"
	TopicMotorStop         = "commands.motors.stop"
	TopicBladeDisable      = "commands.blade.disable"
	TopicSafePosition      = "commands.navigation.safe_position"
	TopicSystemShutdown    = "commands.system.shutdown"
	TopicMotorStatus       = "sensors.motors.status"
	TopicBladeStatus       = "sensors.blade.status"
	TopicHeartbeat         = "system.heartbeat"
	TopicBoundaryViolation = "safety.boundary.violation"
	TopicMaintenanceLockout = "maintenance.lockout"
	TopicPerformanceMetrics = "system.performance_metrics"
	TopicTelemetrySnapshot = "system.telemetry.snapshot"
)
