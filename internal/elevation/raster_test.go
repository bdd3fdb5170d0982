package elevation

import (
	"bytes"
	"context"
	"errors"
	"image"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"
	"golang.org/x/image/tiff"

	"github.com/Faultbox/ifc-terrain/internal/observability"
	"github.com/Faultbox/ifc-terrain/pkg/geom"
)

// encodeTIFF returns a w x h 16-bit grey TIFF whose pixel (px, py) holds px + 10*py.
func encodeTIFF(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewGray16(image.Rect(0, 0, w, h))
	for py := range h {
		for px := range w {
			img.Pix[img.PixOffset(px, py)+1] = uint8(px + 10*py)
		}
	}
	var buf bytes.Buffer
	if err := tiff.Encode(&buf, img, nil); err != nil {
		t.Fatalf("encode tiff: %v", err)
	}
	return buf.Bytes()
}

func newTestRasterSource(srv *httptest.Server, m *observability.Metrics) *RasterSource {
	return NewRasterSource(RasterConfig{
		Options: Options{
			Resolution: 5,
			CRS:        25833,
			Client:     srv.Client(),
			Metrics:    m,
			Logger:     zap.NewNop(),
		},
		URL:      srv.URL + "/wcs",
		Coverage: "las_dtm",
	})
}

func TestRasterSourceFetch(t *testing.T) {
	payload := encodeTIFF(t, 3, 3)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		want := map[string]string{
			"SERVICE":  "WCS",
			"VERSION":  "1.0.0",
			"REQUEST":  "GetCoverage",
			"COVERAGE": "las_dtm",
			"CRS":      "EPSG:25833",
			"BBOX":     "-2.5,-2.5,12.5,12.5",
			"WIDTH":    "3",
			"HEIGHT":   "3",
			"FORMAT":   "GeoTIFF",
		}
		for k, v := range want {
			if got := q.Get(k); got != v {
				t.Errorf("%s = %q, want %q", k, got, v)
			}
		}
		w.Header().Set("Content-Type", "image/tiff")
		_, _ = w.Write(payload)
	}))
	defer srv.Close()

	m, err := observability.NewMetrics(prometheus.NewRegistry())
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	src := newTestRasterSource(srv, m)

	samples, err := src.Fetch(context.Background(), geom.BBox{X1: 0, Y1: 0, X2: 10, Y2: 10})
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if samples.Width != 3 || samples.Height != 3 || len(samples.Vertices) != 9 {
		t.Fatalf("samples = %dx%d with %d vertices", samples.Width, samples.Height, len(samples.Vertices))
	}
	if samples.Resolution != 5 || samples.CRS != 25833 {
		t.Errorf("samples carry resolution %v and EPSG:%d", samples.Resolution, samples.CRS)
	}

	// Raster row 0 is north; grid row 0 is south.
	wantZ := []float64{
		20, 21, 22,
		10, 11, 12,
		0, 1, 2,
	}
	for i, v := range samples.Vertices {
		x, y := float64(i%3)*5, float64(i/3)*5
		if v.X() != x || v.Y() != y {
			t.Errorf("vertex %d at (%v, %v), want (%v, %v)", i, v.X(), v.Y(), x, y)
		}
		if v.Z() != wantZ[i] {
			t.Errorf("vertex %d z = %v, want %v", i, v.Z(), wantZ[i])
		}
	}

	if got := testutil.ToFloat64(m.FetchRequests.WithLabelValues("raster", observability.OutcomeOK)); got != 1 {
		t.Errorf("ok raster requests = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.FetchBytes.WithLabelValues("raster")); got != float64(len(payload)) {
		t.Errorf("raster bytes = %v, want %d", got, len(payload))
	}
}

func TestCoverageBox(t *testing.T) {
	tests := []struct {
		name       string
		padded     geom.BBox
		resolution float64
		cols, rows int
		want       geom.BBox
	}{
		{"exact multiple", geom.BBox{X1: 0, Y1: 0, X2: 10, Y2: 10}, 5, 3, 3, geom.BBox{X1: -2.5, Y1: -2.5, X2: 12.5, Y2: 12.5}},
		{"rounded up", geom.BBox{X1: 100, Y1: 200, X2: 103, Y2: 201}, 2, 3, 2, geom.BBox{X1: 99, Y1: 199, X2: 105, Y2: 203}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CoverageBox(tt.padded, tt.resolution, tt.cols, tt.rows)
			if got != tt.want {
				t.Errorf("CoverageBox = %v, want %v", got, tt.want)
			}
			// Every pixel is exactly one resolution wide.
			if px := got.Width() / float64(tt.cols); px != tt.resolution {
				t.Errorf("pixel width %v, want %v", px, tt.resolution)
			}
			if py := got.Height() / float64(tt.rows); py != tt.resolution {
				t.Errorf("pixel height %v, want %v", py, tt.resolution)
			}
		})
	}
}

func newFloatRasterServer(t *testing.T, values []float32, noData string) *httptest.Server {
	t.Helper()
	payload := buildTIFF(t, tiffImage{
		width: 3, height: 3, bps: 32, format: 3,
		noData: noData,
		strip:  float32Strip(values),
	})
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/tiff")
		_, _ = w.Write(payload)
	}))
}

func TestRasterSourceFloatCoverage(t *testing.T) {
	// North-up: the first row is the northern edge.
	srv := newFloatRasterServer(t, []float32{
		120.5, 121.25, -32767,
		110.5, 111.25, 112,
		100.5, 101.25, 102,
	}, "-32767")
	defer srv.Close()

	m, err := observability.NewMetrics(prometheus.NewRegistry())
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	src := NewRasterSource(RasterConfig{
		Options: Options{
			Resolution: 5,
			CRS:        25833,
			Client:     srv.Client(),
			Metrics:    m,
			Logger:     zap.NewNop(),
		},
		URL:             srv.URL,
		Coverage:        "nhm_dtm_topo_25833",
		NoDataElevation: -1,
	})

	samples, err := src.Fetch(context.Background(), geom.BBox{X1: 0, Y1: 0, X2: 10, Y2: 10})
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	wantZ := []float64{
		100.5, 101.25, 102,
		110.5, 111.25, 112,
		120.5, 121.25, -1,
	}
	for i, v := range samples.Vertices {
		if v.Z() != wantZ[i] {
			t.Errorf("vertex %d z = %v, want %v", i, v.Z(), wantZ[i])
		}
	}
	if got := testutil.ToFloat64(m.MissingElevation); got != 1 {
		t.Errorf("missing elevation = %v, want 1", got)
	}
}

func TestRasterSourceAllNoData(t *testing.T) {
	nd := float32(-32767)
	srv := newFloatRasterServer(t, []float32{nd, nd, nd, nd, nd, nd, nd, nd, nd}, "-32767")
	defer srv.Close()

	_, err := newTestRasterSource(srv, nil).Fetch(context.Background(), geom.BBox{X1: 0, Y1: 0, X2: 10, Y2: 10})

	var decodeErr *DecodeError
	if !errors.As(err, &decodeErr) {
		t.Fatalf("expected *DecodeError, got %v", err)
	}
}

func TestRasterSourceHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "service unavailable", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := newTestRasterSource(srv, nil).Fetch(context.Background(), geom.BBox{X1: 0, Y1: 0, X2: 10, Y2: 10})

	var transportErr *TransportError
	if !errors.As(err, &transportErr) {
		t.Fatalf("expected *TransportError, got %v", err)
	}
	if transportErr.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", transportErr.StatusCode)
	}
}

func TestRasterSourceUndecodable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<ServiceExceptionReport>coverage not found</ServiceExceptionReport>`))
	}))
	defer srv.Close()

	_, err := newTestRasterSource(srv, nil).Fetch(context.Background(), geom.BBox{X1: 0, Y1: 0, X2: 10, Y2: 10})

	var decodeErr *DecodeError
	if !errors.As(err, &decodeErr) {
		t.Fatalf("expected *DecodeError, got %v", err)
	}
}

func TestRasterSourceInvalidBBox(t *testing.T) {
	src := NewRasterSource(RasterConfig{Options: Options{Resolution: 5, Logger: zap.NewNop()}})
	_, err := src.Fetch(context.Background(), geom.BBox{X1: 10, Y1: 0, X2: 0, Y2: 10})
	if !errors.Is(err, geom.ErrInvalidBBox) {
		t.Fatalf("expected ErrInvalidBBox, got %v", err)
	}
}

func TestTIFFDecoderScale(t *testing.T) {
	d := TIFFDecoder{Scale: 0.5, Offset: 100}
	r, err := d.Decode(encodeTIFF(t, 2, 2))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	want := []float64{100, 100.5, 105, 105.5}
	for i, v := range r.Values {
		if v != want[i] {
			t.Errorf("value %d = %v, want %v", i, v, want[i])
		}
	}
}

func TestTIFFDecoderEmpty(t *testing.T) {
	var decodeErr *DecodeError
	if _, err := (TIFFDecoder{}).Decode(nil); !errors.As(err, &decodeErr) {
		t.Fatalf("expected *DecodeError, got %v", err)
	}
}

func TestRasterAtClamps(t *testing.T) {
	r := &Raster{Width: 2, Height: 2, Values: []float64{1, 2, 3, 4}}
	tests := []struct {
		px, py int
		want   float64
	}{
		{0, 0, 1},
		{1, 1, 4},
		{-3, 0, 1},
		{5, 0, 2},
		{0, 9, 3},
	}
	for _, tt := range tests {
		if got := r.At(tt.px, tt.py); got != tt.want {
			t.Errorf("At(%d, %d) = %v, want %v", tt.px, tt.py, got, tt.want)
		}
	}
}
