// defaults.go: default values for the configuration
package conf

import (
	"time"

	"github.com/spf13/viper"
)

// setDefaultConfig sets default values for each configuration parameter
func setDefaultConfig() {
	viper.SetDefault("debug", false)

	viper.SetDefault("main.name", "VirtualTeamLeader")
	viper.SetDefault("main.datadir", "")

	viper.SetDefault("logging.default_level", "info")
	viper.SetDefault("logging.timezone", "Local")
	viper.SetDefault("logging.console.enabled", true)
	viper.SetDefault("logging.console.level", "info")
	viper.SetDefault("logging.file_output.enabled", false)
	viper.SetDefault("logging.file_output.path", "logs/inspector.log")
	viper.SetDefault("logging.file_output.level", "debug")
	viper.SetDefault("logging.file_output.max_size", 50)
	viper.SetDefault("logging.file_output.max_age", 30)
	viper.SetDefault("logging.file_output.max_rotated_files", 5)

	viper.SetDefault("webserver.listen", ":8000")
	viper.SetDefault("webserver.bodylimit", "20M")
	viper.SetDefault("webserver.ratelimit", 5.0)
	viper.SetDefault("webserver.ratelimitburst", 10)
	viper.SetDefault("webserver.corsorigins", []string{"*"})
	viper.SetDefault("webserver.debug", false)

	viper.SetDefault("database.type", DatabaseSQLite)
	viper.SetDefault("database.slowthreshold", 200*time.Millisecond)
	viper.SetDefault("database.sqlite.path", "data/inspections.db")
	viper.SetDefault("database.mysql.host", "localhost")
	viper.SetDefault("database.mysql.port", "3306")
	viper.SetDefault("database.mysql.database", "inspections")
	viper.SetDefault("database.postgres.host", "localhost")
	viper.SetDefault("database.postgres.port", "5432")
	viper.SetDefault("database.postgres.database", "inspections")
	viper.SetDefault("database.postgres.sslmode", "disable")

	viper.SetDefault("model.path", "models/best.tflite")
	viper.SetDefault("model.type", "classification")
	viper.SetDefault("model.scheme", "seven_class")
	viper.SetDefault("model.version", "default")
	viper.SetDefault("model.threads", 0)
	viper.SetDefault("model.dummyfallback", true)

	viper.SetDefault("inspection.confidencethreshold", 0.25)
	viper.SetDefault("inspection.nmsthreshold", 0.45)
	viper.SetDefault("inspection.uploadsdir", "uploads")
	viper.SetDefault("inspection.blurfaces", false)
	viper.SetDefault("inspection.jpegquality", 90)
	viper.SetDefault("inspection.progressttl", 2*time.Minute)

	viper.SetDefault("privacy.enabled", true)
	viper.SetDefault("privacy.cascadepath", "data/haarcascade_frontalface_default.xml")
	viper.SetDefault("privacy.blurstrength", 99)
	viper.SetDefault("privacy.padding", 20)

	viper.SetDefault("training.target", 200)
	viper.SetDefault("training.exportdir", "training_data")
	viper.SetDefault("training.datasetexportdir", "data/exports")
	viper.SetDefault("training.trainingimagesdir", "data/training_images")
	viper.SetDefault("training.referencephotosdir", "data/reference_photos")
	viper.SetDefault("training.modelsdir", "models")
	viper.SetDefault("training.trainsplit", 0.8)

	viper.SetDefault("notification.onlynok", false)
	viper.SetDefault("notification.mqtt.enabled", false)
	viper.SetDefault("notification.mqtt.topic", "vtl")
	viper.SetDefault("notification.mqtt.clientid", "virtualteamleader")
	viper.SetDefault("notification.webhook.enabled", false)
	viper.SetDefault("notification.webhook.timeout", 5*time.Second)

	viper.SetDefault("sentry.enabled", false)
	viper.SetDefault("sentry.environment", "production")

	viper.SetDefault("telemetry.enabled", true)
}
