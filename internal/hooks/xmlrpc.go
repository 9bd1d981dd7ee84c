package hooks

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/beevik/etree"
	"github.com/kolo/xmlrpc"
	"github.com/rs/zerolog/log"
)

const hookPoolInfo = "one.hookpool.info"

// Pool filter arguments: every hook visible to the session, full range.
const (
	poolFilterAll = -2
	poolRangeAll  = -1
)

// XMLRPCSource fetches hooks from the management API.
type XMLRPCSource struct {
	endpoint string
	session  string
	timeout  time.Duration
}

// NewXMLRPCSource creates a source calling endpoint with session credentials.
func NewXMLRPCSource(endpoint, session string, timeout time.Duration) *XMLRPCSource {
	return &XMLRPCSource{
		endpoint: endpoint,
		session:  session,
		timeout:  timeout,
	}
}

// Fetch calls one.hookpool.info and parses the returned pool document.
func (s *XMLRPCSource) Fetch(ctx context.Context) ([]Record, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	client, err := xmlrpc.NewClient(s.endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("creating xmlrpc client: %w", err)
	}
	defer client.Close()

	var reply []any
	args := []any{s.session, poolFilterAll, poolRangeAll, poolRangeAll}
	call := client.Go(hookPoolInfo, args, &reply, nil)

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", hookPoolInfo, ctx.Err())
	case <-call.Done:
	}
	if call.Error != nil {
		return nil, fmt.Errorf("%s: %w", hookPoolInfo, call.Error)
	}

	body, err := poolReplyBody(reply)
	if err != nil {
		return nil, err
	}

	records, err := ParsePool(body)
	if err != nil {
		return nil, err
	}

	log.Debug().
		Str("endpoint", s.endpoint).
		Int("records", len(records)).
		Msg("Fetched hook pool")

	return records, nil
}

// poolReplyBody unpacks the [success, body-or-error, code] reply triple.
func poolReplyBody(reply []any) (string, error) {
	if len(reply) < 2 {
		return "", fmt.Errorf("%s: malformed reply with %d values", hookPoolInfo, len(reply))
	}

	ok, _ := reply[0].(bool)
	body, _ := reply[1].(string)
	if !ok {
		return "", fmt.Errorf("%s: %s", hookPoolInfo, body)
	}
	return body, nil
}

// ParsePool parses a HOOK_POOL document into records.
func ParsePool(data string) ([]Record, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromString(data); err != nil {
		return nil, fmt.Errorf("parsing hook pool: %w", err)
	}

	root := doc.SelectElement("HOOK_POOL")
	if root == nil {
		return nil, errors.New("parsing hook pool: missing HOOK_POOL element")
	}

	hookElems := root.SelectElements("HOOK")
	records := make([]Record, 0, len(hookElems))
	for _, el := range hookElems {
		rec, err := parseHookElement(el)
		if err != nil {
			log.Error().Err(err).Msg("Skipping unparsable hook")
			continue
		}
		records = append(records, rec)
	}

	return records, nil
}

func parseHookElement(el *etree.Element) (Record, error) {
	idText := childText(el, "ID")
	id, err := strconv.Atoi(idText)
	if err != nil {
		return Record{}, fmt.Errorf("invalid hook id %q: %w", idText, err)
	}

	rec := Record{
		ID:       id,
		Name:     childText(el, "NAME"),
		Type:     childText(el, "TYPE"),
		Template: make(map[string]string),
	}

	if tmpl := el.SelectElement("TEMPLATE"); tmpl != nil {
		for _, c := range tmpl.ChildElements() {
			rec.Template[strings.ToUpper(c.Tag)] = strings.TrimSpace(c.Text())
		}
	}

	return rec, nil
}

func childText(el *etree.Element, tag string) string {
	c := el.SelectElement(tag)
	if c == nil {
		return ""
	}
	return strings.TrimSpace(c.Text())
}
