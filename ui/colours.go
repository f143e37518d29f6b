package ui

const (
	Red    = "\033[31m"
	Green  = "\033[32m"
	Yellow = "\033[33m"
	Cyan   = "\033[36m"
	Gray   = "\033[90m" // Bright black, often appears as gray

	RedInverse   = "\033[7;31m"
	GreenInverse = "\033[7;32m"

	ResetColor = "\033[0m" // Reset to default color
)

var levelColors = map[Level]string{
	LevelSuccess: GreenInverse,
	LevelError:   RedInverse,
	LevelWarning: Yellow,
	LevelInfo:    Cyan,
}

func colourise(colour, s string) string {
	return colour + s + ResetColor
}
