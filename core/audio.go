package core

type AudioEncodingFormat int

const (
	PCM  AudioEncodingFormat = iota // 16-bit little endian linear PCM.
	ULAW                            // μ-law encoding format.
	ALAW                            // A-law encoding format.
)

type AudioChunk struct {
	Data       *[]byte             // Raw audio data.
	SampleRate int                 // Sample rate of the audio data.
	Channels   int                 // Number of audio channels.
	Format     AudioEncodingFormat // Encoding format of the audio data.
}

func (ac *AudioChunk) GetDurationInSeconds() float64 {
	if ac.SampleRate == 0 || ac.Channels == 0 || ac.Data == nil {
		return 0.0
	}
	bytesPerSample := 2
	if ac.Format != PCM {
		bytesPerSample = 1
	}
	totalSamples := len(*ac.Data) / (bytesPerSample * ac.Channels)
	return float64(totalSamples) / float64(ac.SampleRate)
}

// Bytes returns the chunk payload, or nil for an empty chunk.
func (ac *AudioChunk) Bytes() []byte {
	if ac.Data == nil {
		return nil
	}
	return *ac.Data
}
