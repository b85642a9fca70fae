// Package checkout реализует конечный автомат сессии покупки:
// выбор пакета, подтверждение игрока, оплата, обработка и завершение заказа.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mmeshcher/uc-storefront/internal/catalog"
	"github.com/mmeshcher/uc-storefront/internal/model"
	"github.com/mmeshcher/uc-storefront/internal/proof"
)

const (
	RedirectHome     = "/"
	RedirectThankYou = "/thankyou"
)

var (
	ErrPackageNotFound   = catalog.ErrPackageNotFound
	ErrIdentityRequired  = errors.New("player identity is required")
	ErrUnknownMethod     = errors.New("unknown payment method")
	ErrMethodUnavailable = errors.New("payment method is temporarily unavailable")
	ErrProofRequired     = errors.New("payment proof is required")
	ErrNotCancellable    = errors.New("payment is already being processed")
	ErrSessionNotFound   = errors.New("checkout session not found")
	ErrInvalidTransition = errors.New("operation not allowed in current phase")
)

// IdentityStore читает и сохраняет подтверждённого игрока.
type IdentityStore interface {
	Get(ctx context.Context) (model.Identity, bool)
	Set(ctx context.Context, playerID, username string) (model.Identity, error)
}

// OrderRecorder добавляет заказ в историю.
type OrderRecorder interface {
	Append(ctx context.Context, order model.PurchaseOrder) error
}

// PurchaseCommitter сохраняет снимок последнего заказа.
type PurchaseCommitter interface {
	Commit(ctx context.Context, order model.PurchaseOrder) error
}

// Scope связывает сессию с хранилищами посетителя и вкладки, в которой она открыта.
type Scope struct {
	Owner        string
	Identity     IdentityStore
	History      OrderRecorder
	LastPurchase PurchaseCommitter
}

// Confirmer подтверждает оплату. Возврат из Confirm означает, что заказ можно завершать.
type Confirmer interface {
	Confirm(ctx context.Context, s Session) error
}

// Session это снимок состояния сессии покупки.
type Session struct {
	ID        string               `json:"id"`
	Phase     model.Phase          `json:"phase"`
	Package   *model.Package       `json:"package,omitempty"`
	Identity  *model.Identity      `json:"identity,omitempty"`
	Method    model.PaymentMethod  `json:"method,omitempty"`
	ProofRef  string               `json:"proofRef,omitempty"`
	Order     *model.PurchaseOrder `json:"order,omitempty"`
	Redirect  string               `json:"redirect,omitempty"`
	UpdatedAt time.Time            `json:"updatedAt"`
}

type session struct {
	scope Scope
	state Session
	done  chan struct{}
}

// Options задаёт поведение сервиса.
type Options struct {
	EnabledMethods []model.PaymentMethod
	Confirmer      Confirmer
	SessionTTL     time.Duration
	Proofs         proof.Store
	Logger         *zap.Logger
}

// Service хранит активные сессии покупки и управляет переходами между состояниями.
type Service struct {
	mu       sync.Mutex
	sessions map[string]*session

	enabled   map[model.PaymentMethod]bool
	confirmer Confirmer
	proofs    proof.Store
	ttl       time.Duration
	logger    *zap.Logger

	inflight sync.WaitGroup
	now      func() time.Time
	newID    func() string
}

// NewService создаёт сервис. Без явного списка включена только оплата мобильным переводом.
func NewService(opts Options) *Service {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	methods := opts.EnabledMethods
	if len(methods) == 0 {
		methods = []model.PaymentMethod{model.PaymentMobileTransfer}
	}
	enabled := make(map[model.PaymentMethod]bool, len(methods))
	for _, m := range methods {
		enabled[m] = true
	}

	confirmer := opts.Confirmer
	if confirmer == nil {
		confirmer = DelayConfirmer{Delay: DefaultProcessingDelay}
	}

	proofs := opts.Proofs
	if proofs == nil {
		proofs = proof.NewMemoryStore()
	}

	ttl := opts.SessionTTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}

	return &Service{
		sessions:  make(map[string]*session),
		enabled:   enabled,
		confirmer: confirmer,
		proofs:    proofs,
		ttl:       ttl,
		logger:    logger,
		now:       time.Now,
		newID:     uuid.NewString,
	}
}

// MethodEnabled сообщает, принимается ли сейчас способ оплаты.
func (s *Service) MethodEnabled(m model.PaymentMethod) bool {
	return s.enabled[m]
}

// Start открывает сессию покупки пакета. Для неизвестного пакета сессия сразу прерывается
// и возвращается ErrPackageNotFound вместе со снимком, содержащим перенаправление на главную.
func (s *Service) Start(ctx context.Context, scope Scope, packageID string) (Session, error) {
	sess := &session{
		scope: scope,
		state: Session{ID: s.newID(), Phase: model.PhasePackageSelected, UpdatedAt: s.now()},
		done:  make(chan struct{}),
	}

	pkg, err := catalog.FindPackage(packageID)
	if err != nil {
		sess.state.Redirect = RedirectHome
		s.register(sess)
		s.mu.Lock()
		s.transition(sess, model.PhaseAborted)
		snap := sess.state
		s.mu.Unlock()
		return snap, fmt.Errorf("start checkout for %q: %w", packageID, err)
	}

	sess.state.Package = &pkg
	s.register(sess)
	s.logger.Info("checkout started",
		zap.String("session", sess.state.ID),
		zap.String("owner", scope.Owner),
		zap.String("package", pkg.ID),
	)

	identity, ok := scope.Identity.Get(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.transition(sess, model.PhaseAwaitingIdentity)
	if ok {
		sess.state.Identity = &identity
		s.transition(sess, model.PhaseAwaitingPayment)
	}
	return sess.state, nil
}

// VerifyIdentity сохраняет игрока и переводит сессию к оплате.
func (s *Service) VerifyIdentity(ctx context.Context, owner, id, playerID, username string) (Session, error) {
	sess, err := s.lookup(owner, id)
	if err != nil {
		return Session{}, err
	}

	if err := s.expect(sess, model.PhaseAwaitingIdentity, model.PhaseAwaitingPayment); err != nil {
		return s.snapshot(sess), err
	}

	identity, err := sess.scope.Identity.Set(ctx, playerID, username)
	if err != nil {
		return s.snapshot(sess), err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !inPhase(sess, model.PhaseAwaitingIdentity, model.PhaseAwaitingPayment) {
		return sess.state, ErrInvalidTransition
	}
	sess.state.Identity = &identity
	sess.state.Redirect = ""
	s.transition(sess, model.PhaseAwaitingPayment)
	return sess.state, nil
}

// Proceed переводит сессию к оплате, если игрок уже подтверждён.
// Иначе возвращает ErrIdentityRequired и перенаправление на шаг подтверждения игрока.
func (s *Service) Proceed(ctx context.Context, owner, id string) (Session, error) {
	sess, err := s.lookup(owner, id)
	if err != nil {
		return Session{}, err
	}

	identity, ok := sess.scope.Identity.Get(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	switch sess.state.Phase {
	case model.PhaseAwaitingPayment:
		return sess.state, nil
	case model.PhaseAwaitingIdentity:
	default:
		return sess.state, ErrInvalidTransition
	}

	if !ok {
		sess.state.Redirect = IdentityStep(*sess.state.Package)
		return sess.state, ErrIdentityRequired
	}

	sess.state.Identity = &identity
	sess.state.Redirect = ""
	s.transition(sess, model.PhaseAwaitingPayment)
	return sess.state, nil
}

// SelectMethod запоминает выбранный способ оплаты. Доступность способа проверяется при отправке.
func (s *Service) SelectMethod(_ context.Context, owner, id string, method model.PaymentMethod) (Session, error) {
	if !method.Valid() {
		return Session{}, ErrUnknownMethod
	}

	sess, err := s.lookup(owner, id)
	if err != nil {
		return Session{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if sess.state.Phase != model.PhaseAwaitingPayment {
		return sess.state, ErrInvalidTransition
	}
	sess.state.Method = method
	sess.state.UpdatedAt = s.now()
	return sess.state, nil
}

// AttachProof сохраняет подтверждение оплаты и запоминает ссылку на него.
func (s *Service) AttachProof(ctx context.Context, owner, id string, a proof.Artifact) (Session, error) {
	sess, err := s.lookup(owner, id)
	if err != nil {
		return Session{}, err
	}

	if err := s.expect(sess, model.PhaseAwaitingPayment); err != nil {
		return s.snapshot(sess), err
	}

	ref, err := s.proofs.Put(ctx, a)
	if err != nil {
		return s.snapshot(sess), err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if sess.state.Phase != model.PhaseAwaitingPayment {
		return sess.state, ErrInvalidTransition
	}
	sess.state.ProofRef = ref
	sess.state.UpdatedAt = s.now()
	return sess.state, nil
}

// Submit отправляет оплату. Повторная отправка во время обработки или после завершения ничего не делает.
func (s *Service) Submit(ctx context.Context, owner, id string) (Session, error) {
	sess, err := s.lookup(owner, id)
	if err != nil {
		return Session{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	switch sess.state.Phase {
	case model.PhaseProcessing, model.PhaseFinalized:
		return sess.state, nil
	case model.PhaseAwaitingIdentity:
		sess.state.Redirect = IdentityStep(*sess.state.Package)
		return sess.state, ErrIdentityRequired
	case model.PhaseAwaitingPayment:
	default:
		return sess.state, ErrInvalidTransition
	}

	method := sess.state.Method
	if method == "" {
		method = model.PaymentMobileTransfer
	}
	if !s.enabled[method] {
		return sess.state, ErrMethodUnavailable
	}
	if method == model.PaymentMobileTransfer && sess.state.ProofRef == "" {
		return sess.state, ErrProofRequired
	}

	sess.state.Method = method
	s.transition(sess, model.PhaseProcessing)

	snap := sess.state
	s.inflight.Add(1)
	// Обработку нельзя отменить: завершение запроса не должно прерывать оплату.
	go s.process(context.WithoutCancel(ctx), sess, snap)

	return snap, nil
}

// Cancel прерывает сессию. После начала обработки оплаты отмена невозможна.
func (s *Service) Cancel(_ context.Context, owner, id string) (Session, error) {
	sess, err := s.lookup(owner, id)
	if err != nil {
		return Session{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	switch sess.state.Phase {
	case model.PhaseProcessing, model.PhaseFinalized:
		return sess.state, ErrNotCancellable
	case model.PhaseAborted:
		return sess.state, nil
	}

	sess.state.Redirect = RedirectHome
	s.transition(sess, model.PhaseAborted)
	return sess.state, nil
}

// Get возвращает снимок сессии.
func (s *Service) Get(owner, id string) (Session, error) {
	sess, err := s.lookup(owner, id)
	if err != nil {
		return Session{}, err
	}
	return s.snapshot(sess), nil
}

// Wait блокируется до перехода сессии в конечное состояние или отмены ctx.
func (s *Service) Wait(ctx context.Context, owner, id string) (Session, error) {
	sess, err := s.lookup(owner, id)
	if err != nil {
		return Session{}, err
	}

	select {
	case <-sess.done:
		return s.snapshot(sess), nil
	case <-ctx.Done():
		return s.snapshot(sess), ctx.Err()
	}
}

func (s *Service) snapshot(sess *session) Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return sess.state
}

// Shutdown ждёт завершения обрабатываемых оплат или отмены ctx.
func (s *Service) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.inflight.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// IdentityStep возвращает путь шага подтверждения игрока для пакета.
func IdentityStep(pkg model.Package) string {
	if pkg.Game == catalog.GameHonorOfKing {
		return "/honor-of-kings/purchase/" + pkg.ID
	}
	return "/purchase/" + pkg.ID
}

func (s *Service) process(ctx context.Context, sess *session, snap Session) {
	defer s.inflight.Done()

	if err := s.confirmer.Confirm(ctx, snap); err != nil {
		s.logger.Warn("payment confirmation failed, finalizing anyway",
			zap.String("session", snap.ID), zap.Error(err))
	}

	pkg := *snap.Package
	order := model.PurchaseOrder{
		ID:            s.newID(),
		PackageID:     pkg.ID,
		BaseAmount:    pkg.BaseAmount,
		BonusAmount:   pkg.BonusAmount,
		Price:         pkg.Price,
		PlayerID:      snap.Identity.PlayerID,
		Username:      snap.Identity.Username,
		PaymentMethod: snap.Method,
		CreatedAt:     s.now().UTC(),
		Status:        model.OrderStatusCompleted,
	}

	if err := sess.scope.History.Append(ctx, order); err != nil {
		s.logger.Warn("record order in history", zap.String("order", order.ID), zap.Error(err))
	}
	if err := sess.scope.LastPurchase.Commit(ctx, order); err != nil {
		s.logger.Warn("commit last purchase", zap.String("order", order.ID), zap.Error(err))
	}

	s.mu.Lock()
	sess.state.Order = &order
	sess.state.Redirect = RedirectThankYou
	s.transition(sess, model.PhaseFinalized)
	s.mu.Unlock()
}

// transition вызывается под s.mu.
func (s *Service) transition(sess *session, to model.Phase) {
	from := sess.state.Phase
	sess.state.Phase = to
	sess.state.UpdatedAt = s.now()

	if to.Terminal() {
		close(sess.done)
	}

	s.logger.Info("checkout transition",
		zap.String("session", sess.state.ID),
		zap.String("from", string(from)),
		zap.String("to", string(to)),
	)
}

func (s *Service) register(sess *session) {
	s.mu.Lock()
	s.sessions[sess.state.ID] = sess
	s.mu.Unlock()
}

func (s *Service) lookup(owner, id string) (*session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok || sess.scope.Owner != owner {
		return nil, ErrSessionNotFound
	}
	return sess, nil
}

func (s *Service) expect(sess *session, phases ...model.Phase) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !inPhase(sess, phases...) {
		return ErrInvalidTransition
	}
	return nil
}

func inPhase(sess *session, phases ...model.Phase) bool {
	for _, p := range phases {
		if sess.state.Phase == p {
			return true
		}
	}
	return false
}
