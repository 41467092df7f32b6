// Package providers registers every built-in provider with the default
// registry; import it for side effects.
package providers

import (
	"github.com/tgfetch/tgfetch"
	"github.com/tgfetch/tgfetch/provider/direct"
	"github.com/tgfetch/tgfetch/provider/youtube"
)

func init() {
	tgfetch.DefaultProviderRegistry.MustAdd(youtube.New())
	tgfetch.DefaultProviderRegistry.MustAdd(direct.New())
}
