package client

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/vnkhanh/siquiz-backend/models"
)

var ErrQuit = errors.New("quit")

const helpText = `Lệnh: n (câu sau), p (câu trước), g <số> (tới câu), A/B/C... (chọn đáp án),
      t <nội dung> (trả lời tự luận), l (tiến độ), s (nộp bài), q (thoát), h (trợ giúp)`

// App điều khiển một lượt làm bài: FSM + đồng hồ + điều hướng.
// Mọi chuyển trạng thái và ghi ra Out diễn ra trên một goroutine (vòng lặp Run).
type App struct {
	API *API
	In  io.Reader
	Out io.Writer

	// TickInterval mặc định 1s, test có thể rút ngắn
	TickInterval time.Duration
	Now          func() time.Time

	state     State
	quizID    uuid.UUID
	attemptID uuid.UUID
	deadline  *time.Time
	session   *Session
	result    *models.AttemptResultDTO
	err       error
}

func NewApp(api *API, in io.Reader, out io.Writer) *App {
	return &App{API: api, In: in, Out: out, TickInterval: time.Second, Now: time.Now, state: StateIdle}
}

func (a *App) State() State { return a.state }
func (a *App) Result() *models.AttemptResultDTO { return a.result }

// Err là lỗi làm phiên rơi vào StateError
func (a *App) Err() error { return a.err }

func (a *App) dispatch(e Event) error {
	next, err := Transition(a.state, e)
	if err != nil {
		return err
	}
	a.state = next
	if e.Err != nil {
		a.err = e.Err
	}
	return nil
}

// Run làm quiz từ đầu tới khi có kết quả. Trả ErrQuit khi người dùng thoát giữa chừng.
func (a *App) Run(ctx context.Context, quizID uuid.UUID) error {
	if a.state == "" {
		a.state = StateIdle
	}
	a.quizID = quizID
	if err := a.dispatch(Event{Type: EventLoad}); err != nil {
		return err
	}

	// side effect khi vào loading
	if err := a.load(ctx); err != nil {
		_ = a.dispatch(Event{Type: EventLoadFailed, Err: err})
		fmt.Fprintf(a.Out, "Không tải được quiz: %v\n", err)
		return err
	}
	if err := a.dispatch(Event{Type: EventLoaded}); err != nil {
		return err
	}

	// in_progress
	trigger, err := a.takeLoop(ctx)
	if err != nil {
		return err
	}
	if err := a.dispatch(Event{Type: trigger}); err != nil {
		return err
	}

	// submitting
	result, err := a.API.Submit(ctx, a.attemptID, a.session.Answers)
	if err != nil {
		_ = a.dispatch(Event{Type: EventSubmitFailed, Err: err})
		fmt.Fprintf(a.Out, "Nộp bài thất bại: %v\n", err)
		return err
	}
	a.result = result
	if err := a.dispatch(Event{Type: EventSubmitted}); err != nil {
		return err
	}

	// results
	RenderResult(a.Out, result)
	return nil
}

func (a *App) load(ctx context.Context) error {
	quiz, err := a.API.Take(ctx, a.quizID)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.Out, "%s\n%d câu hỏi, tổng %d điểm", quiz.Title, quiz.QuestionCount, quiz.TotalPoints)
	if quiz.Duration > 0 {
		fmt.Fprintf(a.Out, ", thời gian %d phút", quiz.Duration)
	}
	fmt.Fprintln(a.Out)

	start, err := a.API.Start(ctx, a.quizID)
	if err != nil {
		return err
	}
	a.attemptID = start.AttemptID
	a.deadline = start.DeadlineAt

	// Lấy lại quiz theo thứ tự của lượt làm + câu đã lưu (nếu đang làm dở)
	progress, _, err := a.API.Progress(ctx, start.AttemptID)
	if err != nil {
		return err
	}
	if progress == nil || progress.Quiz == nil {
		return fmt.Errorf("lượt làm %s không còn ở trạng thái làm bài", start.AttemptID)
	}
	if len(progress.Quiz.Questions) == 0 {
		return fmt.Errorf("quiz không có câu hỏi")
	}
	if progress.DeadlineAt != nil {
		a.deadline = progress.DeadlineAt
	}
	a.session = NewSession(progress.Quiz, progress.Answers)
	if start.Resumed {
		fmt.Fprintf(a.Out, "Tiếp tục lượt làm dở (%d/%d câu đã trả lời)\n", a.session.AnsweredCount(), a.session.Len())
	}
	return nil
}

// takeLoop xử lý lệnh và đồng hồ tới khi nộp bài (EventSubmit) hoặc hết giờ (EventTimeout)
func (a *App) takeLoop(ctx context.Context) (EventType, error) {
	timerCtx, cancelTimer := context.WithCancel(ctx)
	defer cancelTimer()

	timeoutCh := make(chan struct{})
	tickCh := make(chan time.Duration, 1)
	if a.deadline != nil {
		cd := &Countdown{Deadline: *a.deadline, Interval: a.TickInterval, Now: a.Now}
		fmt.Fprintf(a.Out, "Thời gian còn lại: %s\n", FormatRemaining(cd.Remaining()))
		go func() {
			expired := cd.Run(timerCtx, func(left time.Duration) {
				select {
				case tickCh <- left:
				default:
				}
			})
			if expired {
				close(timeoutCh)
			}
		}()
	}

	lines := readLines(timerCtx, a.In)
	fmt.Fprintln(a.Out, helpText)
	RenderQuestion(a.Out, a.session.Current(), a.session.Cursor, a.session.Len(), a.session.CurrentAnswer())

	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-timeoutCh:
			fmt.Fprintln(a.Out, "\nHết giờ! Đang nộp bài với các câu đã trả lời...")
			return EventTimeout, nil
		case left := <-tickCh:
			if warnAt(left) {
				fmt.Fprintf(a.Out, "[còn lại %s]\n", FormatRemaining(left))
			}
		case line, ok := <-lines:
			if !ok {
				// hết input: chỉ còn chờ đồng hồ
				if a.deadline == nil {
					return "", fmt.Errorf("input đã đóng trước khi nộp bài: %w", ErrQuit)
				}
				lines = nil
				continue
			}
			submit, err := a.handle(ctx, line)
			if err != nil {
				return "", err
			}
			if submit {
				return EventSubmit, nil
			}
		}
	}
}

func warnAt(left time.Duration) bool {
	s := int(left.Round(time.Second) / time.Second)
	return s == 300 || s == 60 || s == 30 || (s > 0 && s <= 10)
}

// handle trả true khi người dùng nộp bài
func (a *App) handle(ctx context.Context, line string) (bool, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return false, nil
	}
	s := a.session
	cmd, arg, _ := strings.Cut(line, " ")
	render := true

	switch strings.ToLower(cmd) {
	case "n":
		if !s.Next() {
			fmt.Fprintln(a.Out, "Đã ở câu cuối.")
		}
	case "p":
		if !s.Prev() {
			fmt.Fprintln(a.Out, "Đã ở câu đầu.")
		}
	case "g":
		n, err := strconv.Atoi(strings.TrimSpace(arg))
		if err != nil {
			fmt.Fprintln(a.Out, "Cú pháp: g <số câu>")
			return false, nil
		}
		if err := s.Goto(n); err != nil {
			fmt.Fprintln(a.Out, err)
			return false, nil
		}
	case "t":
		if err := s.AnswerText(arg); err != nil {
			fmt.Fprintln(a.Out, err)
			return false, nil
		}
		a.autosave(ctx)
	case "l":
		fmt.Fprintf(a.Out, "Đã trả lời %d/%d câu\n", s.AnsweredCount(), s.Len())
		render = false
	case "h":
		fmt.Fprintln(a.Out, helpText)
		render = false
	case "s":
		if left := s.Len() - s.AnsweredCount(); left > 0 {
			fmt.Fprintf(a.Out, "Còn %d câu chưa trả lời, vẫn nộp bài.\n", left)
		}
		return true, nil
	case "q":
		fmt.Fprintln(a.Out, "Thoát. Lượt làm vẫn được giữ, có thể tiếp tục trước khi hết giờ.")
		return false, ErrQuit
	default:
		if s.Current().QuestionType == models.ShortAnswer {
			if err := s.AnswerText(line); err != nil {
				fmt.Fprintln(a.Out, err)
				return false, nil
			}
		} else if err := s.Choose(line); err != nil {
			fmt.Fprintf(a.Out, "Lệnh không hợp lệ: %s\n", line)
			return false, nil
		}
		a.autosave(ctx)
	}

	if render {
		RenderQuestion(a.Out, s.Current(), s.Cursor, s.Len(), s.CurrentAnswer())
	}
	return false, nil
}

// autosave lưu câu hiện tại lên server để lượt làm hết giờ vẫn được chấm đúng
func (a *App) autosave(ctx context.Context) {
	q := a.session.Current()
	answer, ok := a.session.Answers[q.ID]
	if !ok {
		answer = models.SavedAnswer{}
	}
	if err := a.API.SaveAnswers(ctx, a.attemptID, map[uuid.UUID]models.SavedAnswer{q.ID: answer}); err != nil {
		fmt.Fprintf(a.Out, "(chưa lưu được lên server: %v)\n", err)
	}
}

// readLines đọc từng dòng cho tới khi hết input hoặc ctx bị hủy (không ai nhận nữa)
func readLines(ctx context.Context, r io.Reader) <-chan string {
	out := make(chan string)
	go func() {
		defer close(out)
		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			if ctx.Err() != nil {
				return
			}
			select {
			case out <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}
