package misc

import (
	"fmt"

	"github.com/joho/godotenv"
)

// LoadEnvSettings loads local overrides first so they win over anything in
// the checked-in .env defaults.
func LoadEnvSettings() {
	godotenv.Load(".env.local")
	godotenv.Load() // .env
}

// LoadEnvForNetwork loads .env.{network} - ie: .env.devnet containing the
// token / oracle bootstrap values a deployment uses for that network.
func LoadEnvForNetwork(network string) {
	godotenv.Load(fmt.Sprintf(".env.%s", network))
}
