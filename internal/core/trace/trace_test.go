package trace

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/golang/snappy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/robosim/internal/core/devices/actuator"
	"github.com/zeusync/robosim/internal/core/devices/sensor"
	"github.com/zeusync/robosim/internal/core/physics/geom"
)

func sampleRecorder() *Recorder {
	rec := NewRecorder("oval", 7)
	for i := 0; i < 3; i++ {
		rec.Append(Record{
			Step:      uint64(i),
			Time:      float64(i) * 0.01,
			DT:        0.01,
			RobotPose: geom.NewPose(float64(i)*0.1, 0, 0),
			Motors: map[string]Motor{
				"left": {Report: actuator.Report{Step: uint64(i), Command: 0.5, SlipRatio: 0.1}, LongitudinalForce: 1.5},
			},
			Bodies: map[string]Body{
				"chassis": {Pose: geom.NewPose(float64(i)*0.1, 0, 0), LinearVelocity: geom.V(0.2, 0)},
			},
			Sensors: map[string]sensor.Reading{
				"line": {Sensor: "line", Kind: "line", Value: 0.8},
			},
		})
	}
	return rec
}

func TestFormatOf(t *testing.T) {
	assert.Equal(t, FormatJSON, FormatOf("run.json"))
	assert.Equal(t, FormatSnappy, FormatOf("/tmp/RUN.JSON.SZ"))
	assert.Equal(t, FormatZstd, FormatOf("out/run.json.zst"))
	assert.Equal(t, FormatJSON, FormatOf("run"))
}

func TestSaveLoadAllFormats(t *testing.T) {
	want := sampleRecorder().Log()
	dir := t.TempDir()

	for _, name := range []string{"run.json", "run.json.sz", "nested/run.json.zst"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, name)
			require.NoError(t, Save(path, want))

			got, err := Load(path)
			require.NoError(t, err)
			assert.Equal(t, want.RunID, got.RunID)
			assert.Equal(t, want.Seed, got.Seed)
			assert.True(t, want.CreatedAt.Equal(got.CreatedAt))
			require.Len(t, got.Records, 3)
			assert.Equal(t, want.Records[2].Motors["left"], got.Records[2].Motors["left"])
			assert.Equal(t, want.Records[1].Bodies, got.Records[1].Bodies)
			assert.InDelta(t, 0.8, got.Records[0].Sensors["line"].Value, 1e-12)
		})
	}
}

func TestSnappyFileIsFramed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.json.sz")
	require.NoError(t, Save(path, sampleRecorder().Log()))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	// Framed streams start with the stream identifier chunk.
	assert.True(t, bytes.HasPrefix(raw, []byte("\xff\x06\x00\x00sNaPpY")))

	decoded, err := io.ReadAll(snappy.NewReader(bytes.NewReader(raw)))
	require.NoError(t, err)
	assert.Contains(t, string(decoded), `"scenario":"oval"`)
}

func TestRecorderSinkAndCopy(t *testing.T) {
	rec := NewRecorder("", 1)
	var streamed []uint64
	rec.SetSink(func(r Record) { streamed = append(streamed, r.Step) })

	rec.Append(Record{Step: 4})
	snapshot := rec.Log()
	rec.Append(Record{Step: 5})

	assert.Equal(t, []uint64{4, 5}, streamed)
	assert.Len(t, snapshot.Records, 1)
	assert.Equal(t, 2, rec.Len())
	assert.NotEmpty(t, rec.Log().RunID)

	rec.Clear()
	assert.Zero(t, rec.Len())
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "garbage.json.zst")
	require.NoError(t, os.WriteFile(path, []byte("not zstd"), 0o644))
	_, err = Load(path)
	assert.Error(t, err)

	assert.ErrorIs(t, Encode(&bytes.Buffer{}, Format(9), Log{}), ErrUnknownFormat)
}
