//go:build tinygo || !cgo

package lanternaux

func showError(title string, err error) {}
