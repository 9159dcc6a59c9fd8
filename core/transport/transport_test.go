package transport

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"errors"
	"math/big"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/searchktools/webpp/core/errs"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type countingShutdowner struct {
	calls chan struct{}
}

func (c *countingShutdowner) Shutdown() error {
	c.calls <- struct{}{}
	return nil
}

func TestGuardFires(t *testing.T) {
	target := &countingShutdowner{calls: make(chan struct{}, 1)}
	g := Arm(target, 10*time.Millisecond)

	select {
	case <-target.calls:
	case <-time.After(time.Second):
		t.Fatal("guard did not fire")
	}
	assert.True(t, g.Fired())
	g.Cancel()
	g.Cancel()
}

func TestGuardCancel(t *testing.T) {
	target := &countingShutdowner{calls: make(chan struct{}, 1)}
	g := Arm(target, 20*time.Millisecond)
	g.Cancel()

	time.Sleep(50 * time.Millisecond)
	assert.False(t, g.Fired())
	assert.Empty(t, target.calls)
}

func TestGuardDisabled(t *testing.T) {
	g := Arm(&countingShutdowner{}, 0)
	assert.Nil(t, g)
	assert.False(t, g.Fired())
	g.Cancel()
}

func TestClassify(t *testing.T) {
	assert.NoError(t, Classify("read", nil, nil))
	assert.True(t, errs.Is(Classify("read", errors.New("reset"), nil), errs.Transport))

	parse := errs.Errorf(errs.Parse, "head", "bad")
	assert.True(t, errs.Is(Classify("read", parse, nil), errs.Parse))

	fired := &Guard{}
	fired.fired.Store(true)
	assert.True(t, errs.Is(Classify("read", parse, fired), errs.Timeout))
}

func pipe(t *testing.T, capability Capability) (server, client Transport) {
	t.Helper()
	ln, err := Listen(context.Background(), "127.0.0.1:0", true)
	require.NoError(t, err)
	defer ln.Close()

	accepted := make(chan Transport, 1)
	go func() {
		tr, err := capability.Accept(ln)
		if err != nil {
			close(accepted)
			return
		}
		accepted <- tr
	}()

	client, err = capability.Dial(context.Background(), ln.Addr().String())
	require.NoError(t, err)
	server = <-accepted
	require.NotNil(t, server)
	return server, client
}

func TestPlainRoundTrip(t *testing.T) {
	server, client := pipe(t, &Plain{})
	defer server.Close()
	defer client.Close()

	require.NoError(t, server.Handshake(context.Background()))
	assert.False(t, server.Secure())

	_, err := client.Write([]byte("hello\r\nworld"))
	require.NoError(t, err)

	n, err := server.ReadUntil("\r\n")
	require.NoError(t, err)
	assert.Equal(t, "hello\r\n", string(server.Next(n)))

	missing := 5 - server.Buffered()
	require.NoError(t, server.ReadExactly(missing))
	assert.Equal(t, "world", string(server.Next(5)))

	host, port, err := server.RemoteEndpoint()
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1", host)
	assert.NotZero(t, port)
}

func TestShutdownUnblocksRead(t *testing.T) {
	server, client := pipe(t, &Plain{})
	defer server.Close()
	defer client.Close()

	g := Arm(server, 20*time.Millisecond)
	_, err := server.ReadUntil("\r\n\r\n")
	g.Cancel()

	require.Error(t, err)
	assert.True(t, errs.Is(Classify("read head", err, g), errs.Timeout))
	assert.NoError(t, server.Shutdown())
}

func TestSecureRoundTrip(t *testing.T) {
	cert := selfSigned(t)
	pool := x509.NewCertPool()
	pool.AddCert(cert.Leaf)

	serverCap := &Secure{Config: &tls.Config{Certificates: []tls.Certificate{cert}}}
	clientCap := &Secure{Config: &tls.Config{RootCAs: pool, ServerName: "localhost"}}

	ln, err := Listen(context.Background(), "127.0.0.1:0", true)
	require.NoError(t, err)
	defer ln.Close()

	done := make(chan error, 1)
	go func() {
		tr, err := serverCap.Accept(ln)
		if err != nil {
			done <- err
			return
		}
		defer tr.Close()
		if err := tr.Handshake(context.Background()); err != nil {
			done <- err
			return
		}
		n, err := tr.ReadUntil("\n")
		if err == nil {
			_, err = tr.Write(tr.Next(n))
		}
		done <- err
	}()

	client, err := clientCap.Dial(context.Background(), ln.Addr().String())
	require.NoError(t, err)
	defer client.Close()
	require.NoError(t, client.Handshake(context.Background()))
	assert.True(t, client.Secure())

	_, err = client.Write([]byte("ping\n"))
	require.NoError(t, err)
	n, err := client.ReadUntil("\n")
	require.NoError(t, err)
	assert.Equal(t, "ping\n", string(client.Next(n)))
	require.NoError(t, <-done)
}

func TestListenBusyPort(t *testing.T) {
	ln, err := Listen(context.Background(), "127.0.0.1:0", false)
	require.NoError(t, err)
	defer ln.Close()

	_, err = Listen(context.Background(), ln.Addr().String(), false)
	assert.True(t, errs.Is(err, errs.Transport))
}

func selfSigned(t *testing.T) tls.Certificate {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "localhost"},
		DNSNames:     []string{"localhost"},
		IPAddresses:  []net.IP{net.ParseIP("127.0.0.1")},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	require.NoError(t, err)
	leaf, err := x509.ParseCertificate(der)
	require.NoError(t, err)

	return tls.Certificate{Certificate: [][]byte{der}, PrivateKey: key, Leaf: leaf}
}
