package fluid

// Sound is an audio event emitted by the engine.
type Sound interface {
	SoundName() string
}

// Particle is a visual event emitted by the engine.
type Particle interface {
	ParticleName() string
}

// FizzSound is played when lava and water meet.
type FizzSound struct {
	Pitch float64
}

func (FizzSound) SoundName() string { return "fizz" }

// SmokeParticle is spawned around lava and water meeting.
type SmokeParticle struct{}

func (SmokeParticle) ParticleName() string { return "smoke" }

const smokeParticles = 8
