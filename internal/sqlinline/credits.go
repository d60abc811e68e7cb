package sqlinline

const QSelectUserCredits = `--sql 96a87202-67de-4984-bc77-5fc57c4d795f
select video_credits
from users
where id = $1::uuid;
`

const QGrantCredits = `--sql c8792908-27f3-4933-af50-8cf94fa8571d
with
credited as (
  update users
  set video_credits = video_credits + $2::int,
      updated_at = now()
  where id = $1::uuid
  returning id, video_credits
),
ledger as (
  insert into credit_transactions (user_id, type, amount, balance_after, description)
  select credited.id, $3::text, $2::int, credited.video_credits, $4::text
  from credited
)
select video_credits from credited;
`

const QListCreditTransactions = `--sql 87dae657-4d2b-47d5-87f7-db3ce75774f6
select
  id::text,
  user_id::text,
  type,
  amount,
  balance_after,
  coalesce(generation_id::text, ''),
  description,
  created_at
from credit_transactions
where user_id = $1::uuid
order by created_at desc
limit $2::int;
`

const QUpsertUserByEmail = `--sql afbaa5d0-eaab-44d5-a246-3ab480e95b7a
insert into users (email)
values (lower($1::text))
on conflict (email) do update set updated_at = now()
returning id::text, video_credits;
`
