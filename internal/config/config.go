package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/rocketscienceinc/kinarow/internal/agent"
)

var (
	ErrInvalidDimensions = errors.New("board dimensions must be at least 1")
	ErrInvalidRunLength  = errors.New("board run length must be between 1 and the dimensions")
	ErrMissingExecutable = errors.New("executable is not configured")
	ErrInvalidInterval   = errors.New("tick interval must be positive")
	ErrInvalidTimeout    = errors.New("move timeout must not be negative")
)

type Config struct {
	LogLevel    string      `yaml:"log-level" env:"KINAROW_LOG_LEVEL" env-default:"info"`
	HTTPPort    string      `yaml:"http-port" env:"KINAROW_HTTP_PORT" env-default:"9090"`
	SocketPort  string      `yaml:"socket-port" env:"KINAROW_SOCKET_PORT" env-default:"9091"`
	Redis       Redis       `yaml:"redis"`
	Board       Board       `yaml:"board"`
	Executables Executables `yaml:"executables"`
	Game        Game        `yaml:"game"`
}

type Redis struct {
	Enabled bool   `yaml:"enabled" env:"KINAROW_REDIS_ENABLED" env-default:"false"`
	Host    string `yaml:"host" env:"KINAROW_REDIS_HOST" env-default:"localhost"`
	Port    string `yaml:"port" env:"KINAROW_REDIS_PORT" env-default:"6379"`
	Channel string `yaml:"channel" env:"KINAROW_REDIS_CHANNEL" env-default:"kinarow:events"`
}

type Board struct {
	Dimensions int `yaml:"dimensions" env:"KINAROW_BOARD_DIMENSIONS" env-default:"50"`
	RunLength  int `yaml:"run-length" env:"KINAROW_BOARD_RUN_LENGTH" env-default:"5"`
}

// Executables holds the command lines of the two agents. They are split
// with shell quoting rules, so quoted paths may contain spaces.
type Executables struct {
	Player1 string `yaml:"player1" env:"KINAROW_PLAYER1"`
	Player2 string `yaml:"player2" env:"KINAROW_PLAYER2"`
}

type Game struct {
	TickInterval time.Duration `yaml:"tick-interval" env:"KINAROW_TICK_INTERVAL" env-default:"500ms"`
	// MoveTimeout bounds a single move read; zero waits forever.
	MoveTimeout time.Duration `yaml:"move-timeout" env:"KINAROW_MOVE_TIMEOUT" env-default:"0s"`
}

// Load reads the config file, applies environment overrides and validates
// the result.
func Load(path string) (*Config, error) {
	config := &Config{}

	if err := cleanenv.ReadConfig(path, config); err != nil {
		return nil, fmt.Errorf("unable to load config file: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}

	return config, nil
}

// MustLoad - load all configurations in config.yml file.
func MustLoad(path string) *Config {
	config, err := Load(path)
	if err != nil {
		panic(err)
	}

	return config
}

func (that *Config) Validate() error {
	if that.Board.Dimensions < 1 {
		return fmt.Errorf("%w: got %d", ErrInvalidDimensions, that.Board.Dimensions)
	}

	if that.Board.RunLength < 1 || that.Board.RunLength > that.Board.Dimensions {
		return fmt.Errorf("%w: got %d for %d", ErrInvalidRunLength, that.Board.RunLength, that.Board.Dimensions)
	}

	if _, err := that.Executables.Command1(); err != nil {
		return err
	}

	if _, err := that.Executables.Command2(); err != nil {
		return err
	}

	if that.Game.TickInterval <= 0 {
		return fmt.Errorf("%w: got %s", ErrInvalidInterval, that.Game.TickInterval)
	}

	if that.Game.MoveTimeout < 0 {
		return fmt.Errorf("%w: got %s", ErrInvalidTimeout, that.Game.MoveTimeout)
	}

	return nil
}

// Command1 returns the argv of player 1's agent.
func (that *Executables) Command1() ([]string, error) {
	return command("player1", that.Player1)
}

// Command2 returns the argv of player 2's agent.
func (that *Executables) Command2() ([]string, error) {
	return command("player2", that.Player2)
}

func command(name, line string) ([]string, error) {
	argv, err := agent.ParseCommand(line)
	if errors.Is(err, agent.ErrEmptyCommand) {
		return nil, fmt.Errorf("%w: %s", ErrMissingExecutable, name)
	}

	if err != nil {
		return nil, fmt.Errorf("executables.%s: %w", name, err)
	}

	return argv, nil
}

func (that *Redis) GetRedisAddr() string {
	return fmt.Sprintf("%s:%s", that.Host, that.Port)
}
