package config

type Config interface {
	EnvConfig
	CorsConfig
	TokenConfig
	CSRFConfig
	SecurityConfig
}

type mainConfig struct {
	EnvVars
	Cors
	Tokens
	CSRF
	Security
}

func New() Config {
	return mainConfig{}
}
