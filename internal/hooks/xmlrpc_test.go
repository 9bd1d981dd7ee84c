package hooks

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const samplePool = `<HOOK_POOL>
  <HOOK>
    <ID>0</ID>
    <NAME>notify</NAME>
    <TYPE>api</TYPE>
    <TEMPLATE>
      <ARGUMENTS><![CDATA[$API]]></ARGUMENTS>
      <CALL><![CDATA[one.vm.allocate]]></CALL>
      <COMMAND><![CDATA[/notify.sh]]></COMMAND>
      <REMOTE><![CDATA[NO]]></REMOTE>
    </TEMPLATE>
  </HOOK>
  <HOOK>
    <ID>3</ID>
    <NAME>running</NAME>
    <TYPE>state</TYPE>
    <TEMPLATE>
      <ARGUMENTS>$TEMPLATE</ARGUMENTS>
      <COMMAND>vm/running.sh</COMMAND>
      <LCM_STATE>RUNNING</LCM_STATE>
      <RESOURCE>VM</RESOURCE>
      <STATE>ACTIVE</STATE>
    </TEMPLATE>
  </HOOK>
  <HOOK>
    <ID>bogus</ID>
    <TYPE>api</TYPE>
  </HOOK>
</HOOK_POOL>`

func TestParsePool(t *testing.T) {
	records, err := ParsePool(samplePool)
	require.NoError(t, err)
	require.Len(t, records, 2)

	require.Equal(t, 0, records[0].ID)
	require.Equal(t, "notify", records[0].Name)
	require.Equal(t, "api", records[0].Type)
	require.Equal(t, "one.vm.allocate", records[0].Template["CALL"])
	require.Equal(t, "/notify.sh", records[0].Template["COMMAND"])
	require.Equal(t, "$API", records[0].Template["ARGUMENTS"])

	require.Equal(t, 3, records[1].ID)
	require.Equal(t, "RUNNING", records[1].Template["LCM_STATE"])
}

func TestParsePool_Invalid(t *testing.T) {
	_, err := ParsePool("<HOOK_POOL><HOOK>")
	require.Error(t, err)

	_, err = ParsePool("<VM_POOL/>")
	require.Error(t, err)
}

func xmlrpcReply(ok bool, body string) string {
	var escaped bytes.Buffer
	_ = xml.EscapeText(&escaped, []byte(body))

	okValue := 0
	if ok {
		okValue = 1
	}

	return fmt.Sprintf(`<?xml version="1.0"?>
<methodResponse><params><param><value><array><data>
<value><boolean>%d</boolean></value>
<value><string>%s</string></value>
<value><i4>0</i4></value>
</data></array></value></param></params></methodResponse>`, okValue, escaped.String())
}

func TestXMLRPCSource_Fetch(t *testing.T) {
	var gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		gotBody = string(data)
		w.Header().Set("Content-Type", "text/xml")
		_, _ = io.WriteString(w, xmlrpcReply(true, samplePool))
	}))
	defer srv.Close()

	source := NewXMLRPCSource(srv.URL, "oneadmin:secret", 5*time.Second)
	records, err := source.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 2)

	require.Contains(t, gotBody, "one.hookpool.info")
	require.Contains(t, gotBody, "oneadmin:secret")
}

func TestXMLRPCSource_FetchFailureReply(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/xml")
		_, _ = io.WriteString(w, xmlrpcReply(false, "[one.hookpool.info] User couldn't be authenticated"))
	}))
	defer srv.Close()

	source := NewXMLRPCSource(srv.URL, "oneadmin:wrong", 5*time.Second)
	_, err := source.Fetch(context.Background())
	require.Error(t, err)
	require.True(t, strings.Contains(err.Error(), "authenticated"))
}

func TestXMLRPCSource_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	source := NewXMLRPCSource(url, "oneadmin:secret", time.Second)
	_, err := source.Fetch(context.Background())
	require.Error(t, err)
}

func TestPoolReplyBody(t *testing.T) {
	_, err := poolReplyBody([]any{true})
	require.Error(t, err)

	body, err := poolReplyBody([]any{true, "<HOOK_POOL/>", int64(0)})
	require.NoError(t, err)
	require.Equal(t, "<HOOK_POOL/>", body)
}
