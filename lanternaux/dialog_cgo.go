//go:build !tinygo && cgo

package lanternaux

import "github.com/sqweek/dialog"

func showError(title string, err error) {
	dialog.Message("%s", err.Error()).Title(title).Error()
}
