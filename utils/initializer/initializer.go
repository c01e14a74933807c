package initializer

import (
	"fmt"
	"io/ioutil"

	"github.com/alpacahq/gofolio/utils/env"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"
)

// Initialize registers gofolio's environment variables
// with their default values.
func Initialize() {
	// Ledger
	env.RegisterDefault("STARTING_CASH", "0")
	env.RegisterDefault("PRICE_SHEET", "prices.csv")
	env.RegisterDefault("HISTORY_PAGE_SIZE", "50")

	// Storage
	env.RegisterDefault("DB_DIALECT", "sqlite3")
	env.RegisterDefault("DB_PATH", "gofolio.db")
	env.RegisterDefault("LOG_DB", "false")

	// Postgres
	env.RegisterDefault("PGDATABASE", "gofolio")
	env.RegisterDefault("PGHOST", "127.0.0.1")
	env.RegisterDefault("PGUSER", "postgres")
	env.RegisterDefault("PGSSLMODE", "disable")

	// Kafka
	env.RegisterDefault("KAFKA_TOPIC", "gofolio.settlements")
}

// LoadFile reads a YAML document of KEY: value pairs and
// registers each pair as a default. Variables already set
// in the environment keep precedence.
func LoadFile(path string) error {
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return errors.Wrap(err, "failed to read config file")
	}
	return Load(data)
}

func Load(data []byte) error {
	values := map[string]interface{}{}
	if err := yaml.Unmarshal(data, &values); err != nil {
		return errors.Wrap(err, "failed to parse config file")
	}

	for key, value := range values {
		switch v := value.(type) {
		case nil:
			continue
		case map[interface{}]interface{}, []interface{}:
			return fmt.Errorf("config key %s: nested values are not supported", key)
		default:
			env.RegisterDefault(key, fmt.Sprintf("%v", v))
		}
	}

	return nil
}
