// Package buffers provides the rolling-window primitives the monitors are
// built from: a fixed-capacity running sum, a finite-impulse-response filter,
// a time-windowed buffer, and time-windowed running sums over scalars and
// ECEF vectors.
//
// Time values are unitless float64. They only need to be consistent within a
// single buffer; every append must carry a time no earlier than the previous
// one.
package buffers

import (
	"fmt"
	"math"
)

// FifoRunningSum tracks the running sum of the most recent N values of a
// stream. When the buffer is full, appending a new value evicts the oldest
// and adjusts the sum incrementally; the sum is never recomputed from
// scratch.
type FifoRunningSum struct {
	capacity int
	values   []float64
	sum      float64
}

// NewFifoRunningSum creates an empty running sum over the last capacity
// values. The capacity is fixed for the life of the buffer.
func NewFifoRunningSum(capacity int) (*FifoRunningSum, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("buffers: running sum capacity must be positive, got %d", capacity)
	}
	return &FifoRunningSum{capacity: capacity}, nil
}

// Append adds a value, evicting the oldest value first if the buffer is full.
func (f *FifoRunningSum) Append(v float64) {
	if len(f.values) == f.capacity {
		f.sum -= f.values[0]
		f.values = f.values[1:]
	}
	f.values = append(f.values, v)
	f.sum += v
}

// Sum returns the sum of the retained values.
func (f *FifoRunningSum) Sum() float64 { return f.sum }

// Len returns the number of retained values.
func (f *FifoRunningSum) Len() int { return len(f.values) }

// Capacity returns the fixed maximum number of values.
func (f *FifoRunningSum) Capacity() int { return f.capacity }

// Reset empties the buffer and zeroes the sum. The capacity is unchanged.
func (f *FifoRunningSum) Reset() {
	f.values = nil
	f.sum = 0
}

// FirFilter is a finite-impulse-response filter. Coefficient i multiplies the
// sample that is i pushes old, so the first coefficient applies to the
// most-recent sample and the last to the oldest. The response is defined only
// once the filter has seen as many samples as it has coefficients.
type FirFilter struct {
	coefficients []float64
	// history is most-recent-first, matching the coefficient order.
	history  []float64
	response float64
	filled   bool
}

// NewFirFilter creates a filter with the given coefficients, most-recent
// first.
func NewFirFilter(coefficients []float64) (*FirFilter, error) {
	if len(coefficients) == 0 {
		return nil, fmt.Errorf("buffers: FIR filter needs at least one coefficient")
	}
	coeffs := make([]float64, len(coefficients))
	copy(coeffs, coefficients)
	return &FirFilter{coefficients: coeffs}, nil
}

// AppendMostRecent pushes a new sample to the front of the history, silently
// evicting the oldest once the history is full, and recomputes the response.
func (f *FirFilter) AppendMostRecent(sample float64) {
	if len(f.history) == len(f.coefficients) {
		f.history = f.history[:len(f.history)-1]
	}
	f.history = append([]float64{sample}, f.history...)

	if len(f.history) < len(f.coefficients) {
		f.filled = false
		return
	}

	var response float64
	for i, c := range f.coefficients {
		response += c * f.history[i]
	}
	f.response = response
	f.filled = true
}

// Response returns the current filter output. The boolean is false until the
// history has filled (and again after Reset).
func (f *FirFilter) Response() (float64, bool) {
	return f.response, f.filled
}

// Initialized reports whether the history has filled.
func (f *FirFilter) Initialized() bool { return f.filled }

// FilterLength returns the number of coefficients.
func (f *FirFilter) FilterLength() int { return len(f.coefficients) }

// Len returns the number of samples currently held.
func (f *FirFilter) Len() int { return len(f.history) }

// Reset clears the sample history without altering the coefficients.
func (f *FirFilter) Reset() {
	f.history = nil
	f.response = 0
	f.filled = false
}

// Vec3 is a 3-component Cartesian vector, used for ECEF positions and
// velocities.
type Vec3 [3]float64

// Add returns v + o.
func (v Vec3) Add(o Vec3) Vec3 {
	return Vec3{v[0] + o[0], v[1] + o[1], v[2] + o[2]}
}

// Sub returns v - o.
func (v Vec3) Sub(o Vec3) Vec3 {
	return Vec3{v[0] - o[0], v[1] - o[1], v[2] - o[2]}
}

// Scale returns v scaled by k.
func (v Vec3) Scale(k float64) Vec3 {
	return Vec3{v[0] * k, v[1] * k, v[2] * k}
}

// Norm returns the Euclidean length of v.
func (v Vec3) Norm() float64 {
	return math.Sqrt(v[0]*v[0] + v[1]*v[1] + v[2]*v[2])
}

// TimedBuffer stores (time, sample) pairs in arrival order and evicts old
// entries so the retained span tracks a target elapsed time. With
// keepOneBefore (the default for NewTimedBuffer), exactly one sample older
// than the window boundary is retained so the span is at least the target;
// otherwise every sample strictly older than the boundary is evicted.
type TimedBuffer[S any] struct {
	times   []float64
	samples []S

	targetElapsed float64
	keepOneBefore bool
}

// NewTimedBuffer creates a buffer that keeps one sample before the window
// boundary. An infinite target means the buffer never evicts.
func NewTimedBuffer[S any](targetElapsed float64) (*TimedBuffer[S], error) {
	return newTimed[S](targetElapsed, true)
}

// NewTimedBufferStrict creates a buffer that evicts every sample strictly
// older than the window boundary.
func NewTimedBufferStrict[S any](targetElapsed float64) (*TimedBuffer[S], error) {
	return newTimed[S](targetElapsed, false)
}

// NewUnboundedTimedBuffer creates a buffer that never evicts.
func NewUnboundedTimedBuffer[S any]() *TimedBuffer[S] {
	b, _ := newTimed[S](math.Inf(1), true)
	return b
}

func newTimed[S any](targetElapsed float64, keepOne bool) (*TimedBuffer[S], error) {
	if targetElapsed < 0 || math.IsNaN(targetElapsed) {
		return nil, fmt.Errorf("buffers: target elapsed time must be non-negative, got %v", targetElapsed)
	}
	return &TimedBuffer[S]{targetElapsed: targetElapsed, keepOneBefore: keepOne}, nil
}

// TargetElapsedTime returns the configured window span.
func (b *TimedBuffer[S]) TargetElapsedTime() float64 { return b.targetElapsed }

// SetTargetElapsedTime changes the window span and immediately re-runs
// eviction against the current newest time.
func (b *TimedBuffer[S]) SetTargetElapsedTime(v float64) error {
	if v < 0 || math.IsNaN(v) {
		return fmt.Errorf("buffers: target elapsed time must be non-negative, got %v", v)
	}
	b.targetElapsed = v
	b.RemoveOldSamples()
	return nil
}

// NewestTime returns the time of the most recent sample, or 0 when empty.
func (b *TimedBuffer[S]) NewestTime() float64 {
	if len(b.times) == 0 {
		return 0
	}
	return b.times[len(b.times)-1]
}

// OldestTime returns the time of the oldest sample, or 0 when empty.
func (b *TimedBuffer[S]) OldestTime() float64 {
	if len(b.times) == 0 {
		return 0
	}
	return b.times[0]
}

// ElapsedTime returns the span between the newest and oldest samples, or 0
// with fewer than two samples.
func (b *TimedBuffer[S]) ElapsedTime() float64 {
	if len(b.times) < 2 {
		return 0
	}
	return b.times[len(b.times)-1] - b.times[0]
}

// OldestSample returns the oldest sample; the boolean is false when empty.
func (b *TimedBuffer[S]) OldestSample() (S, bool) {
	if len(b.samples) == 0 {
		var zero S
		return zero, false
	}
	return b.samples[0], true
}

// NewestSample returns the newest sample; the boolean is false when empty.
func (b *TimedBuffer[S]) NewestSample() (S, bool) {
	if len(b.samples) == 0 {
		var zero S
		return zero, false
	}
	return b.samples[len(b.samples)-1], true
}

// Append adds a sample and evicts old entries. Appending a time strictly
// earlier than the newest retained time is a programmer error and panics;
// equal times are accepted.
func (b *TimedBuffer[S]) Append(time float64, sample S) {
	b.push(time, sample)
	b.RemoveOldSamples()
}

func (b *TimedBuffer[S]) push(time float64, sample S) {
	if time < b.NewestTime() {
		panic(fmt.Sprintf("buffers: time out of order: last time was %v, new time is %v", b.NewestTime(), time))
	}
	b.times = append(b.times, time)
	b.samples = append(b.samples, sample)
}

// staleCount is the number of oldest entries eviction should pop, honouring
// the keep-one-sample-before setting. It can be negative; callers treat that
// as zero.
func (b *TimedBuffer[S]) staleCount() int {
	if len(b.times) == 0 {
		return 0
	}

	cutoff := b.times[len(b.times)-1] - b.targetElapsed

	n := 0
	for _, t := range b.times {
		if t >= cutoff {
			break
		}
		n++
	}

	if b.keepOneBefore {
		n--
	}
	return n
}

// RemoveOldSamples evicts entries older than the window boundary.
func (b *TimedBuffer[S]) RemoveOldSamples() {
	for n := b.staleCount(); n > 0; n-- {
		b.PopLeft()
	}
}

// PopLeft removes the oldest entry.
func (b *TimedBuffer[S]) PopLeft() {
	if len(b.times) == 0 {
		return
	}
	b.times = b.times[1:]
	b.samples = b.samples[1:]
}

// Len returns the number of retained entries.
func (b *TimedBuffer[S]) Len() int { return len(b.times) }

// Reset clears the buffer contents; the window settings are unchanged.
func (b *TimedBuffer[S]) Reset() {
	b.times = nil
	b.samples = nil
}

// TimedRunningSum is a scalar TimedBuffer that incrementally maintains the
// sum of its retained samples. The sum always equals the true sum of the
// contents; it is adjusted on every append and eviction, never recomputed
// from scratch.
type TimedRunningSum struct {
	TimedBuffer[float64]
	sum float64
}

// NewTimedRunningSum creates a running sum over a keep-one-before window.
func NewTimedRunningSum(targetElapsed float64) (*TimedRunningSum, error) {
	inner, err := newTimed[float64](targetElapsed, true)
	if err != nil {
		return nil, err
	}
	return &TimedRunningSum{TimedBuffer: *inner}, nil
}

// Sum returns the sum of the retained samples.
func (s *TimedRunningSum) Sum() float64 { return s.sum }

// Append adds a sample, keeping the sum consistent through any evictions.
func (s *TimedRunningSum) Append(time, sample float64) {
	s.push(time, sample)
	s.sum += sample
	s.RemoveOldSamples()
}

// RemoveOldSamples evicts entries older than the window boundary, adjusting
// the sum for each eviction.
func (s *TimedRunningSum) RemoveOldSamples() {
	for n := s.staleCount(); n > 0; n-- {
		s.PopLeft()
	}
}

// PopLeft removes the oldest entry, subtracting its sample from the sum
// first.
func (s *TimedRunningSum) PopLeft() {
	if oldest, ok := s.OldestSample(); ok {
		s.sum -= oldest
	}
	s.TimedBuffer.PopLeft()
}

// SetTargetElapsedTime changes the window span and immediately re-runs
// eviction, keeping the sum consistent.
func (s *TimedRunningSum) SetTargetElapsedTime(v float64) error {
	if v < 0 || math.IsNaN(v) {
		return fmt.Errorf("buffers: target elapsed time must be non-negative, got %v", v)
	}
	s.targetElapsed = v
	s.RemoveOldSamples()
	return nil
}

// Reset clears the contents and zeroes the sum.
func (s *TimedRunningSum) Reset() {
	s.TimedBuffer.Reset()
	s.sum = 0
}

// TimedVecRunningSum is a TimedBuffer of Vec3 samples with an incrementally
// maintained vector sum. It always evicts strictly: samples older than the
// window boundary are dropped outright with no grace sample.
type TimedVecRunningSum struct {
	TimedBuffer[Vec3]
	sum Vec3
}

// NewTimedVecRunningSum creates a strict-eviction vector running sum.
func NewTimedVecRunningSum(targetElapsed float64) (*TimedVecRunningSum, error) {
	inner, err := newTimed[Vec3](targetElapsed, false)
	if err != nil {
		return nil, err
	}
	return &TimedVecRunningSum{TimedBuffer: *inner}, nil
}

// Sum returns the vector sum of the retained samples.
func (s *TimedVecRunningSum) Sum() Vec3 { return s.sum }

// Mean returns the per-window average position; the boolean is false when
// the buffer is empty.
func (s *TimedVecRunningSum) Mean() (Vec3, bool) {
	if s.Len() == 0 {
		return Vec3{}, false
	}
	return s.sum.Scale(1 / float64(s.Len())), true
}

// Append adds a sample, keeping the vector sum consistent through evictions.
func (s *TimedVecRunningSum) Append(time float64, sample Vec3) {
	s.push(time, sample)
	s.sum = s.sum.Add(sample)
	s.RemoveOldSamples()
}

// RemoveOldSamples evicts entries strictly older than the window boundary,
// adjusting the sum for each eviction.
func (s *TimedVecRunningSum) RemoveOldSamples() {
	for n := s.staleCount(); n > 0; n-- {
		s.PopLeft()
	}
}

// PopLeft removes the oldest entry, subtracting its sample from the sum
// first.
func (s *TimedVecRunningSum) PopLeft() {
	if oldest, ok := s.OldestSample(); ok {
		s.sum = s.sum.Sub(oldest)
	}
	s.TimedBuffer.PopLeft()
}

// SetTargetElapsedTime changes the window span and immediately re-runs
// eviction, keeping the sum consistent.
func (s *TimedVecRunningSum) SetTargetElapsedTime(v float64) error {
	if v < 0 || math.IsNaN(v) {
		return fmt.Errorf("buffers: target elapsed time must be non-negative, got %v", v)
	}
	s.targetElapsed = v
	s.RemoveOldSamples()
	return nil
}

// Reset clears the contents and zeroes the sum.
func (s *TimedVecRunningSum) Reset() {
	s.TimedBuffer.Reset()
	s.sum = Vec3{}
}
