package fingerprint

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
)

func TestTransport_GoProfile(t *testing.T) {
	rt, err := Transport(ProfileGo, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	transport, ok := rt.(*http.Transport)
	if !ok {
		t.Fatalf("expected *http.Transport for go profile")
	}
	if transport.DialTLSContext != nil {
		t.Errorf("go profile must not install a custom TLS dialer")
	}
}

func TestTransport_UnknownProfile(t *testing.T) {
	if _, err := Transport(Profile("netscape"), nil); err == nil {
		t.Fatalf("expected error for unknown profile")
	}
}

func TestTransport_BrowserProfilesInstallDialer(t *testing.T) {
	for _, p := range []Profile{ProfileChrome, ProfileFirefox, ProfileSafari, ProfileRandom} {
		rt, err := Transport(p, nil)
		if err != nil {
			t.Fatalf("profile %s: unexpected error: %v", p, err)
		}
		transport, ok := rt.(*http.Transport)
		if !ok {
			t.Fatalf("profile %s: expected *http.Transport", p)
		}
		if transport.DialTLSContext == nil {
			t.Errorf("profile %s: expected custom TLS dialer", p)
		}
	}
}

func TestTransport_ProxyFunc(t *testing.T) {
	called := false
	rt, err := Transport(ProfileGo, func(req *http.Request) (*url.URL, error) {
		called = true
		return nil, nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Plain HTTP request over the transport exercises the proxy func.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()

	client := &http.Client{Transport: rt}
	resp, err := client.Get(srv.URL)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	resp.Body.Close()

	if !called {
		t.Errorf("expected proxy func to be consulted")
	}
}
