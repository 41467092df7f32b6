package bot

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/tgfetch/tgfetch"
	"github.com/tgfetch/tgfetch/internal/batch"
	"github.com/tgfetch/tgfetch/internal/bulk"
)

const (
	getUsage    = "usage: /get <url> [video|audio] [height, e.g. 480]"
	getAllUsage = "usage: /getall <url> [video|audio] [height] [limit=N|all] [zip|zip=N] [recent=N] [top=N]"
)

type getOptions struct {
	URL     string
	Request tgfetch.FetchRequest
}

type getAllOptions struct {
	URL       string
	Request   tgfetch.FetchRequest
	Mode      bulk.DeliveryMode
	Policy    batch.Policy
	Selection bulk.Selection
}

func parseGetCommand(args string, config tgfetch.Config) (getOptions, error) {
	tokens := strings.Fields(args)
	if len(tokens) == 0 {
		return getOptions{}, errors.New(getUsage)
	}
	opts := getOptions{
		URL: tokens[0],
		Request: tgfetch.FetchRequest{
			Mode:      tgfetch.ModeVideo,
			MaxHeight: config.DefaultHeight,
		},
	}
	for _, tok := range tokens[1:] {
		switch {
		case tok == "video":
			opts.Request.Mode = tgfetch.ModeVideo
		case tok == "audio":
			opts.Request.Mode = tgfetch.ModeAudio
		case isDigits(tok):
			h, err := parseHeight(tok, getUsage)
			if err != nil {
				return getOptions{}, err
			}
			opts.Request.MaxHeight = h
		default:
			return getOptions{}, fmt.Errorf("unrecognized option %q\n%s", tok, getUsage)
		}
	}
	return opts, nil
}

func parseGetAllCommand(args string, config tgfetch.Config) (getAllOptions, error) {
	tokens := strings.Fields(args)
	if len(tokens) == 0 {
		return getAllOptions{}, errors.New(getAllUsage)
	}
	opts := getAllOptions{
		URL: tokens[0],
		Request: tgfetch.FetchRequest{
			Mode:      tgfetch.ModeVideo,
			MaxHeight: config.DefaultHeight,
		},
		Mode:      bulk.DeliverInline,
		Selection: bulk.Selection{Kind: bulk.SelectAll, N: config.DefaultLimit},
	}
	for _, tok := range tokens[1:] {
		key, value, hasValue := strings.Cut(tok, "=")
		switch {
		case tok == "video":
			opts.Request.Mode = tgfetch.ModeVideo
		case tok == "audio":
			opts.Request.Mode = tgfetch.ModeAudio
		case isDigits(tok):
			h, err := parseHeight(tok, getAllUsage)
			if err != nil {
				return getAllOptions{}, err
			}
			opts.Request.MaxHeight = h
		case tok == "zip":
			policy, err := batch.SizeBound(config.SizeBudgetBytes)
			if err != nil {
				return getAllOptions{}, err
			}
			opts.Mode = bulk.DeliverSizeArchive
			opts.Policy = policy
		case key == "zip" && hasValue:
			n, err := parseCount(tok, value)
			if err != nil {
				return getAllOptions{}, err
			}
			policy, err := batch.CountBound(n)
			if err != nil {
				return getAllOptions{}, err
			}
			opts.Mode = bulk.DeliverCountArchive
			opts.Policy = policy
		case key == "limit" && hasValue:
			if value == "all" {
				opts.Selection.N = 0
				continue
			}
			n, err := parseCount(tok, value)
			if err != nil {
				return getAllOptions{}, err
			}
			opts.Selection.N = n
		case key == "recent" && hasValue:
			n, err := parseCount(tok, value)
			if err != nil {
				return getAllOptions{}, err
			}
			opts.Selection = bulk.Selection{Kind: bulk.SelectRecent, N: n}
		case key == "top" && hasValue:
			n, err := parseCount(tok, value)
			if err != nil {
				return getAllOptions{}, err
			}
			opts.Selection = bulk.Selection{Kind: bulk.SelectTop, N: n}
		default:
			return getAllOptions{}, fmt.Errorf("unrecognized option %q\n%s", tok, getAllUsage)
		}
	}
	return opts, nil
}

// parseHeight rejects a zero height: it would pass format selection
// uncapped but produce an unusable scale filter when shrinking.
func parseHeight(token, usage string) (int, error) {
	n, err := strconv.Atoi(token)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("height must be a positive number\n%s", usage)
	}
	return n, nil
}

func parseCount(token, value string) (int, error) {
	n, err := strconv.Atoi(value)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("%q needs a positive number\n%s", token, getAllUsage)
	}
	return n, nil
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
