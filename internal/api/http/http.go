package http

type Config struct {
	Port    uint   `mapstructure:"port"`
	BaseURL string `mapstructure:"base_url"`
	QRSize  int    `mapstructure:"qr_size"`
}
