package postgres

import (
	"github.com/yoockh/resumedesk/internal/models"
	"gorm.io/gorm"
)

// notifyTriggerSQL announces every resumes row change on the resume_changes channel.
// Only the key goes out: NOTIFY payloads are capped below 8000 bytes and notes are unbounded.
const notifyTriggerSQL = `
CREATE OR REPLACE FUNCTION notify_resume_change() RETURNS trigger AS $$
BEGIN
	IF TG_OP = 'DELETE' THEN
		PERFORM pg_notify('resume_changes', json_build_object('op', TG_OP, 'id', OLD.id, 'user_id', OLD.user_id)::text);
	ELSE
		PERFORM pg_notify('resume_changes', json_build_object('op', TG_OP, 'id', NEW.id, 'user_id', NEW.user_id)::text);
	END IF;
	RETURN NULL;
END;
$$ LANGUAGE plpgsql;

DROP TRIGGER IF EXISTS resumes_notify ON resumes;
CREATE TRIGGER resumes_notify
	AFTER INSERT OR UPDATE OR DELETE ON resumes
	FOR EACH ROW EXECUTE FUNCTION notify_resume_change();
`

// Migrate creates the tables. The notify trigger is installed only on Postgres.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&models.Profile{}, &models.Resume{}); err != nil {
		return err
	}
	if db.Dialector.Name() != "postgres" {
		return nil
	}
	return db.Exec(notifyTriggerSQL).Error
}
