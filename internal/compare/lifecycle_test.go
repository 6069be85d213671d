package compare

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/dronetrace/internal/dynamo"
)

var _ = Describe("Driver lifecycle", func() {
	var (
		ctx    context.Context
		sim    *fakeSim
		driver *Driver
		ctrl   *echoController
	)

	BeforeEach(func() {
		ctx = context.Background()
		sim = &fakeSim{z0: 0.1}
		driver, ctrl, _ = newFakeDriver(uniformTrace(100, 1, 0.1), sim)
	})

	Context("before Start", func() {
		It("is uninitialized", func() {
			Expect(driver.State()).To(Equal(StateUninitialized))
		})

		It("refuses to step", func() {
			Expect(driver.Step(ctx)).To(MatchError(dynamo.ErrState))
		})

		It("refuses to stop", func() {
			Expect(driver.Stop(ctx)).To(MatchError(dynamo.ErrState))
			Expect(sim.closed).To(BeFalse())
		})
	})

	Context("after Start", func() {
		BeforeEach(func() {
			Expect(driver.Start(ctx)).To(Succeed())
		})

		It("is running at the trace rate", func() {
			Expect(driver.State()).To(Equal(StateRunning))
			Expect(driver.Rate()).To(Equal(100))
			Expect(driver.Steps()).To(Equal(100))
			Expect(ctrl.resets).To(Equal(1))
		})

		It("rejects a second Start", func() {
			Expect(driver.Start(ctx)).To(MatchError(dynamo.ErrState))
			Expect(driver.State()).To(Equal(StateRunning))
		})

		It("logs one record per track per step", func() {
			for i := 0; i < 3; i++ {
				Expect(driver.Step(ctx)).To(Succeed())
			}
			Expect(driver.StepIndex()).To(Equal(3))
			Expect(driver.Recorder().Len(dynamo.TrackReference)).To(Equal(3))
			Expect(driver.Recorder().Len(dynamo.TrackLive)).To(Equal(3))
		})

		It("reports exhaustion after the last step", func() {
			Expect(driver.Run(ctx)).To(Succeed())
			Expect(driver.Step(ctx)).To(MatchError(dynamo.ErrTraceExhausted))
			Expect(driver.State()).To(Equal(StateRunning))
		})

		Context("and Stop", func() {
			BeforeEach(func() {
				Expect(driver.Run(ctx)).To(Succeed())
				Expect(driver.Stop(ctx)).To(Succeed())
			})

			It("closes the simulator and the recorder", func() {
				Expect(driver.State()).To(Equal(StateClosed))
				Expect(sim.closed).To(BeTrue())
				Expect(driver.Recorder().Closed()).To(BeTrue())
			})

			It("rejects further steps, stops and starts", func() {
				Expect(driver.Step(ctx)).To(MatchError(dynamo.ErrState))
				Expect(driver.Stop(ctx)).To(MatchError(dynamo.ErrState))
				Expect(driver.Start(ctx)).To(MatchError(dynamo.ErrState))
			})

			It("rejects late log calls", func() {
				err := driver.Recorder().Log(dynamo.TrackLive, 1, dynamo.VehicleState{}, dynamo.ControlVector{})
				Expect(err).To(MatchError(dynamo.ErrClosed))
			})

			It("summarizes the run", func() {
				sum := driver.Summary()
				Expect(sum.Steps).To(Equal(100))
				Expect(sum.TraceSamples).To(Equal(100))
				Expect(sum.AltitudeOffset).To(BeNumerically("~", 0, 1e-12))
			})
		})
	})

	Context("when the trace cannot be loaded", func() {
		BeforeEach(func() {
			var err error
			driver, err = New(Options{
				Trace:      FromFile("/nonexistent/trace.msgpack"),
				Simulator:  (&fakeFactory{sim: sim}).build,
				Controller: &echoController{},
			})
			Expect(err).NotTo(HaveOccurred())
		})

		It("stays uninitialized with an IO error", func() {
			Expect(driver.Start(ctx)).To(MatchError(dynamo.ErrIO))
			Expect(driver.State()).To(Equal(StateUninitialized))
		})
	})
})
